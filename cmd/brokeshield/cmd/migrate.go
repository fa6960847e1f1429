package cmd

import (
	"context"
	"fmt"

	"github.com/brokeshield/brokeshield/internal/config"
	"github.com/brokeshield/brokeshield/internal/db"
	"github.com/brokeshield/brokeshield/internal/logger"
	"github.com/spf13/cobra"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
	}

	cmd.AddCommand(migrateStepCmd("up", "Apply all pending migrations"))
	cmd.AddCommand(migrateStepCmd("down", "Roll back the most recent migration"))
	cmd.AddCommand(migrateStepCmd("status", "Show which migrations are applied"))
	return cmd
}

func migrateStepCmd(step, short string) *cobra.Command {
	return &cobra.Command{
		Use:   step,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context(), step)
		},
	}
}

func migrate(ctx context.Context, step string) error {
	cfg := config.Load()
	log := logger.New(cfg.IsDevelopment(), cfg.SentryDSN)

	database, err := db.Init(cfg.DBDriver, cfg.DBConnection, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() { _ = db.Close(database) }()

	switch step {
	case "up":
		return db.RunMigrations(ctx, database.DB, cfg.DBDriver, log)
	case "down":
		return db.MigrateDown(ctx, database.DB, cfg.DBDriver, log)
	default:
		return db.MigrationStatus(ctx, database.DB, cfg.DBDriver, log)
	}
}
