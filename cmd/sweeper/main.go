package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/tradevouch/internal/communities"
	"github.com/angelmondragon/tradevouch/internal/cron"
	"github.com/angelmondragon/tradevouch/internal/notify"
	"github.com/angelmondragon/tradevouch/internal/tiers"
	"github.com/angelmondragon/tradevouch/internal/trades"
	"github.com/angelmondragon/tradevouch/pkg/config"
	"github.com/angelmondragon/tradevouch/pkg/db"
	"github.com/angelmondragon/tradevouch/pkg/discord"
	"github.com/angelmondragon/tradevouch/pkg/logger"
	"github.com/angelmondragon/tradevouch/pkg/metrics"
	"github.com/angelmondragon/tradevouch/pkg/migrate"
	"github.com/angelmondragon/tradevouch/pkg/pubsub"
	"github.com/angelmondragon/tradevouch/pkg/redis"
)

const lockName = "trade-expiry"

// Expiry runs without eligibility or staff checks.
var offline = discord.NewOffline()

func main() {
	logg := logger.New(logger.Options{ServiceName: "sweeper"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "sweeper"

	logg = logger.New(logger.Options{
		ServiceName: "sweeper",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.Apply(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to apply migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	var sink notify.Sink = notify.LogSink{Logger: logg}
	if cfg.GCP.Enabled() {
		psClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := psClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		sink = psClient
	}

	ledgerMetrics := metrics.NewLedgerMetrics(prometheus.DefaultRegisterer)
	jobMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

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
		logg.Error(context.Background(), "failed to create community settings service", err)
		os.Exit(1)
	}

	tradeSvc, err := trades.NewService(trades.ServiceParams{
		Repo:        trades.NewRepository(dbClient.DB()),
		Tx:          dbClient,
		Eligibility: offline,
		Staff:       offline,
		Recorder:    ledgerMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create trade service", err)
		os.Exit(1)
	}

	notifier, err := notify.NewNotifier(sink, settingsSvc, notify.Topics{
		Trades:  cfg.PubSub.TradeEventsTopic,
		Vouches: cfg.PubSub.VouchEventsTopic,
	}, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifier", err)
		os.Exit(1)
	}

	expiryJob, err := cron.NewTradeExpiryJob(cron.TradeExpiryJobParams{
		Logger:    logg,
		Ledger:    tradeSvc,
		TTLs:      settingsSvc,
		Notifier:  notifier,
		BatchSize: cfg.Sweeper.BatchLimit,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create trade expiry job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName), cfg.Sweeper.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create sweeper lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(expiryJob),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Sweeper.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweeper service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"interval":    cfg.Sweeper.Interval.String(),
	})
	logg.Info(ctx, "starting sweeper")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sweeper stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "sweeper shutting down gracefully")
}
