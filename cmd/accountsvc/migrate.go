package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkrupp/homecase-accounts/internal/infra/logging"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long:  `Apply all pending migrations to the configured user store (SQLite or PostgreSQL).`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg MigrateConfig
			if err := loadConfig(cmd.Context(), &cfg, &cfg.Log); err != nil {
				return err
			}

			applied, err := migrate(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			cmd.Printf("applied %d migration(s)\n", applied)

			return nil
		},
	}
}

func migrate(ctx context.Context, cfg MigrateConfig) (applied int, err error) {
	log := logging.GetLogger(loggerName + ".migrate").With(logging.Group("store", "driver", cfg.Store.Driver))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "migrate failed", "error", err)
		} else {
			log.InfoContext(ctx, "migrated", "applied", applied)
		}
	}()

	// Migrations run explicitly below.
	cfg.Store.SQLite.AutoMigrate = false
	cfg.Store.Postgres.AutoMigrate = false

	factory, err := cfg.Store.factory()
	if err != nil {
		return 0, err
	}

	repo, err := factory(ctx)
	if err != nil {
		return 0, fmt.Errorf("new user repo: %w", err)
	}

	defer func() { _ = repo.Close() }()

	applied, err = repo.Migrate(ctx)
	if err != nil {
		return 0, fmt.Errorf("migrate: %w", err)
	}

	return applied, nil
}
