package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/support-service/internal/config"
	"github.com/spec-kit/support-service/internal/observability"
	"github.com/spec-kit/support-service/internal/persistence"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withPostgres(cmd.Context(), func(ctx context.Context, pg *persistence.Postgres, logger *zap.Logger) error {
			return persistence.RunMigrations(ctx, pg.PoolHandle(), logger)
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the state of every migration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withPostgres(cmd.Context(), func(ctx context.Context, pg *persistence.Postgres, _ *zap.Logger) error {
			return persistence.MigrationStatus(ctx, pg.PoolHandle())
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func withPostgres(ctx context.Context, fn func(context.Context, *persistence.Postgres, *zap.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	if !pg.Enabled() {
		return errors.New("POSTGRES_DSN is required")
	}
	return fn(ctx, pg, logger)
}
