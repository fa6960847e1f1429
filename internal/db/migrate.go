package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

var dialects = map[string]goose.Dialect{
	"sqlite": goose.DialectSQLite3,
	"pgx":    goose.DialectPostgres,
}

// newProvider returns a goose provider over the embedded migrations. Each
// provider carries its own dialect, so databases of either driver can be
// migrated side by side.
func newProvider(db *sql.DB, driver string) (*goose.Provider, error) {
	dialect, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("no migration dialect for driver %q", driver)
	}

	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to get migrations directory: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db, migrations)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return provider, nil
}

func RunMigrations(ctx context.Context, db *sql.DB, driver string, log *slog.Logger) error {
	provider, err := newProvider(db, driver)
	if err != nil {
		return err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	for _, r := range results {
		log.Debug("migration applied", "version", r.Source.Version, "duration", r.Duration)
	}
	log.Info("migrations completed successfully", "applied", len(results))
	return nil
}

func MigrateDown(ctx context.Context, db *sql.DB, driver string, log *slog.Logger) error {
	provider, err := newProvider(db, driver)
	if err != nil {
		return err
	}

	result, err := provider.Down(ctx)
	if err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	log.Info("rolled back one migration", "version", result.Source.Version)
	return nil
}

// MigrationStatus logs the state of every known migration.
func MigrationStatus(ctx context.Context, db *sql.DB, driver string, log *slog.Logger) error {
	provider, err := newProvider(db, driver)
	if err != nil {
		return err
	}

	statuses, err := provider.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}

	for _, s := range statuses {
		log.Info("migration", "version", s.Source.Version, "path", s.Source.Path, "state", string(s.State), "applied_at", s.AppliedAt)
	}
	return nil
}
