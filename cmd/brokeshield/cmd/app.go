package cmd

import (
	"fmt"
	"time"

	"github.com/brokeshield/brokeshield/internal/app"
	"github.com/brokeshield/brokeshield/internal/config"
	"github.com/brokeshield/brokeshield/internal/logger"
	"github.com/getsentry/sentry-go"
)

// openApp loads configuration, connects and migrates the database. The
// returned cleanup closes the database and flushes Sentry.
func openApp() (*app.App, func(), error) {
	cfg := config.Load()
	log := logger.New(cfg.IsDevelopment(), cfg.SentryDSN)

	a, err := app.New(cfg, log)
	if err != nil {
		sentry.Flush(2 * time.Second)
		return nil, nil, fmt.Errorf("failed to initialize app: %w", err)
	}

	cleanup := func() {
		if err := a.Close(); err != nil {
			log.Error("failed to close app", "error", err)
		}
		sentry.Flush(2 * time.Second)
	}
	return a, cleanup, nil
}

func parseAt(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at must be RFC 3339 or YYYY-MM-DD: %w", err)
	}
	return t.UTC(), nil
}

