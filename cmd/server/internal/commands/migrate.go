package commands

import (
	"context"
	"fmt"

	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/logger"
	postgresstore "github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store/postgres"
)

type MigrateCmd struct {
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

func (c *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	if err := c.PostgresStore.Validate(); err != nil {
		return err
	}

	cfg := c.PostgresStore.poolConfig()
	cfg.ApplicationName = "videoinsight-migrate"
	// schema changes are not bound by the request statement timeout
	cfg.StatementTimeout = -1

	pool, err := postgresstore.NewPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	applied, err := postgresstore.RunMigrations(ctx, pool)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info().Int("applied", applied).Msg("Database migrations completed")
	return nil
}
