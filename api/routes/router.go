package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/tradevouch/api/controllers"
	"github.com/angelmondragon/tradevouch/api/middleware"
	"github.com/angelmondragon/tradevouch/internal/communities"
	"github.com/angelmondragon/tradevouch/internal/trades"
	"github.com/angelmondragon/tradevouch/internal/vouches"
	"github.com/angelmondragon/tradevouch/pkg/config"
	"github.com/angelmondragon/tradevouch/pkg/logger"
	pkgredis "github.com/angelmondragon/tradevouch/pkg/redis"
)

// Dependencies are the services and infrastructure the HTTP surface is built from.
// Notifiers, Idempotency, Metrics and the readiness pingers are optional.
type Dependencies struct {
	Trades      trades.Service
	Vouches     vouches.Service
	Communities communities.Service
	Staff       middleware.StaffAuthorizer

	TicketNotifier controllers.TicketNotifier
	VouchNotifier  controllers.VouchNotifier
	Idempotency    pkgredis.IdempotencyStore
	Metrics        prometheus.Gatherer
	Readiness      map[string]controllers.Pinger
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	staff := deps.Staff
	if staff == nil {
		staff = middleware.ClaimsStaff{}
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/communities/{communityId}", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireCommunity(logg))

		r.Route("/trades", func(r chi.Router) {
			r.With(middleware.Idempotency(deps.Idempotency, cfg.Trades.IdempotencyTTL, logg)).
				Post("/", controllers.CreateTrade(deps.Trades, deps.TicketNotifier, logg))

			r.Route("/{ticketId}", func(r chi.Router) {
				r.Get("/", controllers.GetTrade(deps.Trades, logg))
				r.Post("/accept", controllers.AcceptTrade(deps.Trades, deps.TicketNotifier, logg))
				r.Post("/decline", controllers.DeclineTrade(deps.Trades, deps.TicketNotifier, logg))
				r.Post("/confirm", controllers.ConfirmTrade(deps.Trades, deps.TicketNotifier, logg))
				// staff is enforced by the ledger itself
				r.Post("/force-close", controllers.ForceCloseTrade(deps.Trades, deps.TicketNotifier, logg))
				r.Put("/external-ref", controllers.AttachExternalRef(deps.Trades, logg))
				r.Post("/vouches", controllers.AddFeedback(deps.Vouches, deps.VouchNotifier, logg))
			})
		})

		r.Route("/members/{userId}", func(r chi.Router) {
			r.Get("/trades", controllers.MemberTrades(deps.Trades, logg))
			r.Get("/trades/stats", controllers.MemberTradeStats(deps.Trades, logg))
			r.Get("/reputation", controllers.MemberReputation(deps.Vouches, logg))
			r.With(middleware.RequireStaff(staff, logg)).
				Post("/tier-sync", controllers.SyncMemberTier(deps.Vouches, logg))
		})

		r.Get("/leaderboard", controllers.Leaderboard(deps.Vouches, logg))

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", controllers.GetSettings(deps.Communities, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireStaff(staff, logg))
				r.Put("/thresholds", controllers.UpdateThresholds(deps.Communities, logg))
				r.Put("/roles", controllers.UpdateRoles(deps.Communities, logg))
				r.Put("/vouch-channel", controllers.UpdateVouchChannel(deps.Communities, logg))
				r.Put("/trade-ttl", controllers.UpdateTradeTTL(deps.Communities, logg))
			})
		})
	})

	return r
}
