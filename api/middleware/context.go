package middleware

import "context"

type contextKey string

const (
	ctxActorID     contextKey = "actor_id"
	ctxCommunityID contextKey = "community_id"
	ctxStaff       contextKey = "staff"
)

func ActorIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxActorID).(string); ok {
		return v
	}
	return ""
}

func CommunityIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxCommunityID).(string); ok {
		return v
	}
	return ""
}

// StaffFromContext reports the staff assertion carried by the token, not a live permission check.
func StaffFromContext(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(ctxStaff).(bool)
	return v
}

// WithActor injects the acting member and their community into the context.
func WithActor(ctx context.Context, actorID, communityID string, staff bool) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxActorID, actorID)
	ctx = context.WithValue(ctx, ctxCommunityID, communityID)
	return context.WithValue(ctx, ctxStaff, staff)
}
