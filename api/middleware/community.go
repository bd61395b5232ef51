package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/tradevouch/api/responses"
	pkgerrors "github.com/angelmondragon/tradevouch/pkg/errors"
	"github.com/angelmondragon/tradevouch/pkg/logger"
)

// CommunityParam is the route parameter every community-scoped path carries.
const CommunityParam = "communityId"

// RequireCommunity rejects requests whose path community differs from the token's.
func RequireCommunity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			community := chi.URLParam(r, CommunityParam)
			if community == "" || community != CommunityIDFromContext(r.Context()) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "token is not valid for this community"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
