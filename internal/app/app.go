package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brokeshield/brokeshield/internal/config"
	"github.com/brokeshield/brokeshield/internal/db"
	"github.com/brokeshield/brokeshield/internal/middleware"
	"github.com/brokeshield/brokeshield/internal/notify"
	"github.com/brokeshield/brokeshield/internal/service"
	"github.com/brokeshield/brokeshield/internal/sweeper"
	"github.com/jmoiron/sqlx"
)

type App struct {
	Cfg           *config.Config
	DB            *sqlx.DB
	Log           *slog.Logger
	AuthService   *service.AuthService
	UserService   *service.UserService
	GoalService   *service.GoalService
	LedgerService *service.LedgerService
	Notifications *notify.Queue
	Sweeper       *sweeper.Sweeper
	Scheduler     *sweeper.Scheduler
	RateLimiter   *middleware.RateLimiter
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	err = db.RunMigrations(context.Background(), database.DB, cfg.DBDriver, log)
	if err != nil {
		_ = db.Close(database)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return Wire(cfg, database, log), nil
}

// Wire builds the services around an open, migrated database.
func Wire(cfg *config.Config, database *sqlx.DB, log *slog.Logger) *App {
	// Notifications
	sender := notify.NewEmailSender(cfg.ResendAPIKey, cfg.EmailFrom, cfg.IsDevelopment(), log)
	queue := notify.NewQueue(sender, cfg.NotifyQueueSize, cfg.NotifyWorkers, log)

	// Sweeper
	sw := sweeper.New(database, queue, sweeper.Config{
		AppName:  cfg.AppName,
		LeaseTTL: cfg.SweepLeaseTTL,
	}, log)
	scheduler := sweeper.NewScheduler(sw, sweeper.SchedulerConfig{
		ExpiryInterval:     cfg.SweepExpiryInterval,
		CompletionInterval: cfg.SweepCompletionInterval,
		PassTimeout:        cfg.SweepPassTimeout,
	}, log)

	return &App{
		Cfg:           cfg,
		DB:            database,
		Log:           log,
		AuthService:   service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry),
		UserService:   service.NewUserService(database, log),
		GoalService:   service.NewGoalService(database, log),
		LedgerService: service.NewLedgerService(database, log),
		Notifications: queue,
		Sweeper:       sw,
		Scheduler:     scheduler,
		RateLimiter:   middleware.NewRateLimiter(60, time.Minute),
	}
}

func (a *App) Close() error {
	if a.DB != nil {
		return db.Close(a.DB)
	}
	return nil
}
