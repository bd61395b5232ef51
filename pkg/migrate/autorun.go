package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/tradevouch/pkg/config"
	"github.com/angelmondragon/tradevouch/pkg/db"
	"github.com/angelmondragon/tradevouch/pkg/logger"
)

// Apply brings the schema up to date during process boot, before any service is built.
// It is a no-op when the auto-migrate flag is off.
func Apply(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.FeatureFlags.AutoMigrate {
		if logg != nil {
			logg.Info(ctx, "schema auto-migrate disabled")
		}
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": client.Driver()})
		logg.Info(ctx, "applying schema migrations")
	}

	if err := Up(ctx, sqlDB, client.Driver()); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "schema migrations applied")
	}
	return nil
}
