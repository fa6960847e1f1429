package sweeper

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

type SchedulerConfig struct {
	ExpiryInterval     time.Duration
	CompletionInterval time.Duration
	PassTimeout        time.Duration
}

// Scheduler runs each pass on its own ticker until the context ends. A
// failed pass is logged and retried on the next tick.
type Scheduler struct {
	sweeper *Sweeper
	cfg     SchedulerConfig
	log     *slog.Logger
	now     func() time.Time
}

func NewScheduler(sweeper *Sweeper, cfg SchedulerConfig, log *slog.Logger) *Scheduler {
	if cfg.ExpiryInterval <= 0 {
		cfg.ExpiryInterval = 200 * time.Second
	}
	if cfg.CompletionInterval <= 0 {
		cfg.CompletionInterval = 30 * time.Second
	}
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = 20 * time.Second
	}

	return &Scheduler{
		sweeper: sweeper,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("sweep scheduler started",
		"expiry_interval", s.cfg.ExpiryInterval,
		"completion_interval", s.cfg.CompletionInterval,
		"pass_timeout", s.cfg.PassTimeout,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.loop(gctx, PassExpirations, s.cfg.ExpiryInterval) })
	g.Go(func() error { return s.loop(gctx, PassCompletions, s.cfg.CompletionInterval) })
	err := g.Wait()

	s.log.Info("sweep scheduler stopped")
	return err
}

func (s *Scheduler) loop(ctx context.Context, pass string, interval time.Duration) error {
	s.runOnce(ctx, pass)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.runOnce(ctx, pass)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, pass string) {
	passCtx, cancel := context.WithTimeout(ctx, s.cfg.PassTimeout)
	defer cancel()

	if _, err := s.sweeper.Run(passCtx, pass, s.now().UTC()); err != nil {
		s.log.Error("sweep pass failed", "pass", pass, "error", err)
	}
}
