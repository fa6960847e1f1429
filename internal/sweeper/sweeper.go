// Package sweeper moves goals out of pending once their outcome is known.
// Each pass takes the evaluation instant as a parameter, runs in a single
// transaction and emits notifications only after that transaction commits.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/brokeshield/brokeshield/internal/db"
	"github.com/brokeshield/brokeshield/internal/model"
	"github.com/brokeshield/brokeshield/internal/notify"
	"github.com/brokeshield/brokeshield/internal/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	PassExpirations = "expirations"
	PassCompletions = "completions"
)

type Config struct {
	AppName  string
	Holder   string
	LeaseTTL time.Duration
	// Clock times the lease. It defaults to time.Now and is independent of
	// the instant a pass is evaluated at.
	Clock func() time.Time
}

// Result summarizes one pass. Skipped is set when another run held the pass.
type Result struct {
	Pass         string
	Transitioned int
	Invalidated  int
	Skipped      bool
}

type Sweeper struct {
	db         *sqlx.DB
	dispatcher notify.Dispatcher
	log        *slog.Logger
	appName    string
	holder     string
	leaseTTL   time.Duration
	clock      func() time.Time
	running    map[string]*sync.Mutex
}

func New(database *sqlx.DB, dispatcher notify.Dispatcher, cfg Config, log *slog.Logger) *Sweeper {
	if cfg.Holder == "" {
		host, _ := os.Hostname()
		cfg.Holder = fmt.Sprintf("%s:%d:%s", host, os.Getpid(), uuid.New().String()[:8])
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Sweeper{
		db:         database,
		dispatcher: dispatcher,
		log:        log.With("holder", cfg.Holder),
		appName:    cfg.AppName,
		holder:     cfg.Holder,
		leaseTTL:   cfg.LeaseTTL,
		clock:      cfg.Clock,
		running: map[string]*sync.Mutex{
			PassExpirations: {},
			PassCompletions: {},
		},
	}
}

// Run invokes the named pass.
func (s *Sweeper) Run(ctx context.Context, pass string, now time.Time) (Result, error) {
	switch pass {
	case PassExpirations:
		return s.SweepExpirations(ctx, now)
	case PassCompletions:
		return s.SweepCompletions(ctx, now)
	}
	return Result{}, fmt.Errorf("unknown sweep pass %q", pass)
}

// SweepExpirations expires every pending, incomplete goal whose deadline is
// before now.
func (s *Sweeper) SweepExpirations(ctx context.Context, now time.Time) (Result, error) {
	now = now.UTC()
	return s.sweep(ctx, PassExpirations, func(repos *repository.Repositories, res *Result) ([]model.NotificationEvent, error) {
		goals, err := repos.Goals.DueForExpiry(ctx, now)
		if err != nil {
			return nil, fmt.Errorf("failed to find expired goals: %w", err)
		}

		var events []model.NotificationEvent
		for _, goal := range goals {
			ok, err := repos.Goals.Transition(ctx, goal.ID, model.GoalStatusPending, model.GoalStatusExpired, now)
			if err != nil {
				return nil, fmt.Errorf("failed to expire goal %s: %w", goal.ID, err)
			}
			if !ok {
				continue
			}
			res.Transitioned++

			recipient, err := s.recipient(ctx, repos, goal)
			if err != nil {
				return nil, err
			}
			ev, err := notify.ExpiredEvent(goal, recipient, s.appName)
			if err != nil {
				return nil, err
			}
			events = append(events, ev)
		}

		return events, nil
	})
}

// SweepCompletions promotes goals marked complete to accomplished. A claim
// the ledger no longer backs is withdrawn instead.
func (s *Sweeper) SweepCompletions(ctx context.Context, now time.Time) (Result, error) {
	now = now.UTC()
	return s.sweep(ctx, PassCompletions, func(repos *repository.Repositories, res *Result) ([]model.NotificationEvent, error) {
		goals, err := repos.Goals.DueForPromotion(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to find completed goals: %w", err)
		}

		var events []model.NotificationEvent
		for _, goal := range goals {
			saved, err := repos.Contributions.SumByGoal(ctx, goal.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to sum contributions for goal %s: %w", goal.ID, err)
			}

			if saved < goal.AmountRequired {
				if err := repos.Goals.ClearComplete(ctx, goal.ID, now); err != nil {
					return nil, fmt.Errorf("failed to withdraw completion of goal %s: %w", goal.ID, err)
				}
				res.Invalidated++
				s.log.Warn("completion not backed by ledger", "goal_id", goal.ID, "saved", saved.String(), "required", goal.AmountRequired.String())
				continue
			}

			ok, err := repos.Goals.Transition(ctx, goal.ID, model.GoalStatusPending, model.GoalStatusAccomplished, now)
			if err != nil {
				return nil, fmt.Errorf("failed to promote goal %s: %w", goal.ID, err)
			}
			if !ok {
				continue
			}
			res.Transitioned++

			goal.AmountSaved = saved
			recipient, err := s.recipient(ctx, repos, goal)
			if err != nil {
				return nil, err
			}
			ev, err := notify.AccomplishedEvent(goal, recipient, s.appName)
			if err != nil {
				return nil, err
			}
			events = append(events, ev)
		}

		return events, nil
	})
}

type passFunc func(repos *repository.Repositories, res *Result) ([]model.NotificationEvent, error)

func (s *Sweeper) sweep(ctx context.Context, pass string, fn passFunc) (Result, error) {
	res := Result{Pass: pass}
	log := s.log.With("pass", pass)

	mu := s.running[pass]
	if !mu.TryLock() {
		log.Debug("sweep pass still running in this process, skipping")
		res.Skipped = true
		return res, nil
	}
	defer mu.Unlock()

	leases := repository.NewLeaseRepository(s.db)
	acquired, err := leases.Acquire(ctx, pass, s.holder, s.clock(), s.leaseTTL)
	if err != nil {
		return res, fmt.Errorf("failed to acquire %s lease: %w", pass, err)
	}
	if !acquired {
		log.Info("sweep lease held by another process, skipping")
		res.Skipped = true
		return res, nil
	}
	defer func() {
		if err := leases.Release(context.WithoutCancel(ctx), pass, s.holder); err != nil {
			log.Warn("failed to release sweep lease", "error", err)
		}
	}()

	var events []model.NotificationEvent
	err = db.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		events, err = fn(repository.New(tx), &res)
		return err
	})
	if err != nil {
		log.Error("sweep pass rolled back", "error", err)
		return Result{Pass: pass}, err
	}

	for _, ev := range events {
		s.dispatcher.Emit(ev)
	}

	if res.Transitioned > 0 || res.Invalidated > 0 {
		log.Info("sweep pass committed", "transitioned", res.Transitioned, "invalidated", res.Invalidated)
	}
	return res, nil
}

func (s *Sweeper) recipient(ctx context.Context, repos *repository.Repositories, goal *model.Goal) (string, error) {
	user, err := repos.Users.ByID(ctx, goal.UserID)
	if err == repository.ErrUserNotFound {
		s.log.Warn("goal owner not found", "goal_id", goal.ID, "user_id", goal.UserID)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load owner of goal %s: %w", goal.ID, err)
	}
	return user.Email, nil
}
