package migrate

import (
	"context"
	"fmt"

	"github.com/tomaskub292929/to-korea-sub000/pkg/config"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db"
	"github.com/tomaskub292929/to-korea-sub000/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on boot. It only acts in dev
// with TOKOREA_AUTO_MIGRATE set; every other environment migrates through
// cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extract sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, DialectFor(cfg.DB.Driver), Shipped())
	if err != nil {
		return err
	}

	applied, err := runner.Up(ctx)
	if err != nil {
		return err
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"dialect": string(DialectFor(cfg.DB.Driver)),
		"applied": applied,
	}), "dev migrations applied")
	return nil
}
