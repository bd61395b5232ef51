package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/tradevouch/api/responses"
	pkgAuth "github.com/angelmondragon/tradevouch/pkg/auth"
	"github.com/angelmondragon/tradevouch/pkg/config"
	pkgerrors "github.com/angelmondragon/tradevouch/pkg/errors"
	"github.com/angelmondragon/tradevouch/pkg/logger"
)

// Auth validates the bearer token minted by the gateway and seeds the request context with the actor.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithActor(r.Context(), claims.ActorID, claims.CommunityID, claims.Staff)
			if logg != nil {
				ctx = logg.WithActorID(ctx, claims.ActorID)
				ctx = logg.WithCommunityID(ctx, claims.CommunityID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
