package middleware

import (
	"context"
	"net/http"

	"github.com/angelmondragon/tradevouch/api/responses"
	pkgerrors "github.com/angelmondragon/tradevouch/pkg/errors"
	"github.com/angelmondragon/tradevouch/pkg/logger"
)

// StaffAuthorizer answers whether a member holds moderator authority in a community.
type StaffAuthorizer interface {
	IsStaff(ctx context.Context, communityID, memberID string) (bool, error)
}

// ClaimsStaff trusts a staff claim on the request token and falls back to the platform for
// everyone else.
type ClaimsStaff struct {
	Fallback StaffAuthorizer
}

func (c ClaimsStaff) IsStaff(ctx context.Context, communityID, memberID string) (bool, error) {
	if StaffFromContext(ctx) &&
		ActorIDFromContext(ctx) == memberID &&
		CommunityIDFromContext(ctx) == communityID {
		return true, nil
	}
	if c.Fallback == nil {
		return false, nil
	}
	return c.Fallback.IsStaff(ctx, communityID, memberID)
}

func RequireStaff(authz StaffAuthorizer, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ok, err := authz.IsStaff(ctx, CommunityIDFromContext(ctx), ActorIDFromContext(ctx))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check staff permissions"))
				return
			}
			if !ok {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "staff permissions required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
