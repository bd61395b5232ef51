package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/tradevouch/api/controllers"
	"github.com/angelmondragon/tradevouch/api/middleware"
	"github.com/angelmondragon/tradevouch/api/routes"
	"github.com/angelmondragon/tradevouch/internal/communities"
	"github.com/angelmondragon/tradevouch/internal/notify"
	"github.com/angelmondragon/tradevouch/internal/tiers"
	"github.com/angelmondragon/tradevouch/internal/trades"
	"github.com/angelmondragon/tradevouch/internal/vouches"
	"github.com/angelmondragon/tradevouch/pkg/config"
	"github.com/angelmondragon/tradevouch/pkg/db"
	"github.com/angelmondragon/tradevouch/pkg/discord"
	"github.com/angelmondragon/tradevouch/pkg/logger"
	"github.com/angelmondragon/tradevouch/pkg/metrics"
	"github.com/angelmondragon/tradevouch/pkg/migrate"
	"github.com/angelmondragon/tradevouch/pkg/pubsub"
	"github.com/angelmondragon/tradevouch/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

// platform is everything the API needs from the chat platform.
type platform interface {
	IsEligible(ctx context.Context, communityID, memberID string) (bool, error)
	IsStaff(ctx context.Context, communityID, memberID string) (bool, error)
	tiers.RoleGateway
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.Apply(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to apply migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	readiness := map[string]controllers.Pinger{
		"database": dbClient,
		"redis":    redisClient,
		"pubsub":   nil,
	}

	var sink notify.Sink = notify.LogSink{Logger: logg}
	if cfg.GCP.Enabled() {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := psClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		sink = psClient
		readiness["pubsub"] = psClient
	} else {
		logg.Warn(ctx, "gcp project not configured, events will only be logged")
	}

	var gateway platform
	if cfg.Discord.BotToken != "" {
		gw, err := discord.NewGateway(cfg.Discord.BotToken)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap discord gateway", err)
			os.Exit(1)
		}
		gateway = gw
	} else {
		logg.Warn(ctx, "discord bot token not configured, running with offline gateway")
		gateway = discord.NewOffline()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ledgerMetrics := metrics.NewLedgerMetrics(reg)

	reconciler, err := tiers.NewReconciler(gateway, logg)
	if err != nil {
		logg.Error(ctx, "failed to create tier reconciler", err)
		os.Exit(1)
	}
	staff := middleware.ClaimsStaff{Fallback: gateway}

	settingsSvc, err := communities.NewService(
		communities.NewRepository(dbClient.DB()),
		tiers.Thresholds{
			New:      cfg.Tiers.NewThreshold,
			Verified: cfg.Tiers.VerifiedThreshold,
			Trusted:  cfg.Tiers.TrustedThreshold,
		},
		cfg.Trades.DefaultTTL,
	)
	if err != nil {
		logg.Error(ctx, "failed to create community settings service", err)
		os.Exit(1)
	}

	tradeSvc, err := trades.NewService(trades.ServiceParams{
		Repo:        trades.NewRepository(dbClient.DB()),
		Tx:          dbClient,
		Eligibility: gateway,
		Staff:       staff,
		IDs:         trades.NewRandomIDGenerator(cfg.Trades.IDLength),
		IDAttempts:  cfg.Trades.IDAttempts,
		Recorder:    ledgerMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create trade service", err)
		os.Exit(1)
	}

	vouchSvc, err := vouches.NewService(vouches.ServiceParams{
		Repo:        vouches.NewRepository(dbClient.DB()),
		Tickets:     tradeSvc,
		Eligibility: gateway,
		Settings:    settingsSvc,
		Reconciler:  reconciler,
		Logger:      logg,
		Recorder:    ledgerMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create vouch service", err)
		os.Exit(1)
	}

	notifier, err := notify.NewNotifier(sink, settingsSvc, notify.Topics{
		Trades:  cfg.PubSub.TradeEventsTopic,
		Vouches: cfg.PubSub.VouchEventsTopic,
	}, logg)
	if err != nil {
		logg.Error(ctx, "failed to create notifier", err)
		os.Exit(1)
	}

	router := routes.NewRouter(cfg, logg, routes.Dependencies{
		Trades:         tradeSvc,
		Vouches:        vouchSvc,
		Communities:    settingsSvc,
		Staff:          staff,
		TicketNotifier: notifier,
		VouchNotifier:  notifier,
		Idempotency:    redisClient,
		Metrics:        reg,
		Readiness:      readiness,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "port", cfg.App.Port), "starting api server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			logg.Error(ctx, "api server failed", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "api server shutdown failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}
