package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/tradevouch/api/middleware"
	"github.com/angelmondragon/tradevouch/api/responses"
	"github.com/angelmondragon/tradevouch/api/validators"
	"github.com/angelmondragon/tradevouch/internal/trades"
	"github.com/angelmondragon/tradevouch/internal/vouches"
	"github.com/angelmondragon/tradevouch/pkg/logger"
	"github.com/angelmondragon/tradevouch/pkg/pagination"
)

// MemberTrades lists a member's tickets newest first, one cursor page at a time.
func MemberTrades(svc trades.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		memberID, err := validators.PathID(r, "userId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		page, err := svc.ListForMember(ctx, middleware.CommunityIDFromContext(ctx), memberID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WritePage(w, trades.NewTicketViews(page.Tickets), page.NextCursor, limit)
	}
}

func MemberTradeStats(svc trades.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		memberID, err := validators.PathID(r, "userId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		counts, err := svc.CountByStatus(ctx, middleware.CommunityIDFromContext(ctx), memberID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, counts)
	}
}

// MemberReputation is the profile: count, average, tier and recent feedback.
func MemberReputation(svc vouches.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		memberID, err := validators.PathID(r, "userId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		rep, err := svc.Reputation(ctx, middleware.CommunityIDFromContext(ctx), memberID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, vouches.NewProfileView(rep))
	}
}

// SyncMemberTier recomputes a member's tier and converges their roles, reporting platform failures.
func SyncMemberTier(svc vouches.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		memberID, err := validators.PathID(r, "userId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		res, err := svc.SyncTier(ctx, middleware.CommunityIDFromContext(ctx), memberID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}
