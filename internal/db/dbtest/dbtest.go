// Package dbtest opens migrated throwaway SQLite databases for tests.
package dbtest

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/brokeshield/brokeshield/internal/db"
	"github.com/jmoiron/sqlx"
)

// Open returns a fresh database in t.TempDir with all migrations applied.
// It is closed when the test ends.
func Open(t *testing.T) *sqlx.DB {
	t.Helper()

	log := slog.New(slog.DiscardHandler)
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)" +
		"&_time_format=sqlite&_txlock=immediate"

	database, err := db.Init("sqlite", dsn, log)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(database) })

	if err := db.RunMigrations(t.Context(), database.DB, "sqlite", log); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return database
}
