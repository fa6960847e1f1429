package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/brokeshield/brokeshield/internal/db"
	"github.com/brokeshield/brokeshield/internal/model"
	"github.com/brokeshield/brokeshield/internal/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// LedgerService appends contributions and answers aggregate queries. The
// ledger is the source of truth; goals.amount_saved is a cache kept in step
// inside the same transaction.
type LedgerService struct {
	db  *sqlx.DB
	log *slog.Logger
	now func() time.Time
}

func NewLedgerService(db *sqlx.DB, log *slog.Logger) *LedgerService {
	return &LedgerService{
		db:  db,
		log: log,
		now: time.Now,
	}
}

// Append records amount against goalID on behalf of contributorID. An empty
// contributorID means the caller. Group admins may post for other members.
func (s *LedgerService) Append(ctx context.Context, identity model.Identity, goalID, contributorID string, amount model.Money) (*model.Contribution, error) {
	if !identity.Valid() {
		return nil, ErrForbidden
	}
	if amount <= 0 {
		return nil, invalid("amount must be positive")
	}
	if contributorID == "" {
		contributorID = identity.UserID
	}

	now := s.now().UTC()
	contribution := &model.Contribution{
		ID:            uuid.New().String(),
		GoalID:        goalID,
		ContributorID: contributorID,
		Amount:        amount,
		CreatedAt:     now,
	}

	err := db.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repos := repository.New(tx)

		goal, err := loadGoal(ctx, repos, goalID, true)
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
		if err != nil {
			return err
		}

		if err := authorize(ctx, repos, identity, goal, accessContribute); err != nil {
			return err
		}
		if err := s.checkContributor(ctx, repos, identity, goal, contributorID); err != nil {
			return err
		}

		if !goal.IsPending() {
			return fmt.Errorf("%w: goal is already %s", ErrConflict, goal.Status)
		}

		if err := repos.Contributions.Create(ctx, contribution); err != nil {
			return err
		}

		err = repos.Goals.IncrementSaved(ctx, goalID, amount, now)
		if errors.Is(err, repository.ErrSavedOverflow) {
			return invalid("amount would push the goal total past %s", model.MaxMoney)
		}
		return err
	})
	if err != nil {
		return nil, persistence("append contribution", err)
	}

	s.log.Info("contribution recorded", "goal_id", goalID, "contributor_id", contributorID, "amount", amount.String())
	return contribution, nil
}

func (s *LedgerService) checkContributor(ctx context.Context, repos *repository.Repositories, identity model.Identity, goal *model.Goal, contributorID string) error {
	if contributorID == identity.UserID {
		return nil
	}

	if !goal.IsGroupGoal() {
		return fmt.Errorf("%w: contributions to a personal goal are recorded by its owner", ErrForbidden)
	}

	caller, err := repos.Members.Member(ctx, *goal.GroupID, identity.UserID)
	if err != nil {
		return err
	}
	if !caller.IsAdmin() {
		return fmt.Errorf("%w: only group admins can record contributions for other members", ErrForbidden)
	}

	_, err = repos.Members.Member(ctx, *goal.GroupID, contributorID)
	if err == repository.ErrMemberNotFound {
		return invalid("contributor %s is not a member of the group", contributorID)
	}
	return err
}

func (s *LedgerService) SumByGoal(ctx context.Context, identity model.Identity, goalID string) (model.Money, error) {
	repos := repository.New(s.db)
	if err := s.readable(ctx, repos, identity, goalID); err != nil {
		return 0, err
	}

	sum, err := repos.Contributions.SumByGoal(ctx, goalID)
	if err != nil {
		return 0, persistence("sum contributions", err)
	}

	return sum, nil
}

func (s *LedgerService) SumByContributor(ctx context.Context, identity model.Identity, goalID, contributorID string) (model.Money, error) {
	repos := repository.New(s.db)
	if err := s.readable(ctx, repos, identity, goalID); err != nil {
		return 0, err
	}

	sum, err := repos.Contributions.SumByContributor(ctx, goalID, contributorID)
	if err != nil {
		return 0, persistence("sum contributions", err)
	}

	return sum, nil
}

// List returns a newest-first page of contributions with the goal total and,
// for group goals, each member's total.
func (s *LedgerService) List(ctx context.Context, identity model.Identity, goalID string, page, limit int) (*model.ContributionPage, error) {
	repos := repository.New(s.db)

	goal, err := loadGoal(ctx, repos, goalID, false)
	if err != nil {
		return nil, persistence("load goal", err)
	}
	if err := authorize(ctx, repos, identity, goal, accessRead); err != nil {
		return nil, persistence("authorize", err)
	}

	page, limit = pageBounds(page, limit)
	result := &model.ContributionPage{Page: page, Limit: limit}

	result.Items, err = repos.Contributions.Contributions(ctx, goalID, limit, (page-1)*limit)
	if err != nil {
		return nil, persistence("list contributions", err)
	}
	if result.Items == nil {
		result.Items = []*model.Contribution{}
	}

	result.Total, err = repos.Contributions.CountContributions(ctx, goalID)
	if err != nil {
		return nil, persistence("count contributions", err)
	}

	result.GoalTotal, err = repos.Contributions.SumByGoal(ctx, goalID)
	if err != nil {
		return nil, persistence("sum contributions", err)
	}

	if goal.IsGroupGoal() {
		result.MemberTotals, err = repos.Contributions.TotalsByContributor(ctx, goalID)
		if err != nil {
			return nil, persistence("sum member contributions", err)
		}
	}

	return result, nil
}

// Reconcile rewrites the cached amount_saved from the ledger and returns the
// ledger total. It is a maintenance operation and performs no authorization.
func (s *LedgerService) Reconcile(ctx context.Context, goalID string) (model.Money, error) {
	var sum model.Money

	err := db.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repos := repository.New(tx)

		goal, err := loadGoal(ctx, repos, goalID, true)
		if err != nil {
			return err
		}

		sum, err = repos.Contributions.SumByGoal(ctx, goalID)
		if err != nil {
			return err
		}

		if goal.AmountSaved == sum {
			return nil
		}

		s.log.Warn("cached amount saved drifted from ledger", "goal_id", goalID, "cached", goal.AmountSaved.String(), "ledger", sum.String())
		return repos.Goals.SetSaved(ctx, goalID, sum, s.now().UTC())
	})
	if err != nil {
		return 0, persistence("reconcile goal", err)
	}

	return sum, nil
}

var ledgerHeader = []string{"id", "goal_id", "contributor_id", "amount", "created_at"}

// Export writes the goal's full ledger as CSV, oldest entry first.
func (s *LedgerService) Export(ctx context.Context, identity model.Identity, goalID string, w io.Writer) (int, error) {
	repos := repository.New(s.db)
	if err := s.readable(ctx, repos, identity, goalID); err != nil {
		return 0, err
	}
	return s.writeLedger(ctx, repos, goalID, w)
}

// Archive writes the same CSV as Export for maintenance jobs. It performs no
// authorization.
func (s *LedgerService) Archive(ctx context.Context, goalID string, w io.Writer) (int, error) {
	repos := repository.New(s.db)
	if _, err := loadGoal(ctx, repos, goalID, false); err != nil {
		return 0, persistence("load goal", err)
	}
	return s.writeLedger(ctx, repos, goalID, w)
}

func (s *LedgerService) writeLedger(ctx context.Context, repos *repository.Repositories, goalID string, w io.Writer) (int, error) {
	entries, err := repos.Contributions.Ledger(ctx, goalID)
	if err != nil {
		return 0, persistence("load ledger", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ledgerHeader); err != nil {
		return 0, err
	}
	for _, c := range entries {
		err := cw.Write([]string{c.ID, c.GoalID, c.ContributorID, c.Amount.String(), c.CreatedAt.UTC().Format(time.RFC3339Nano)})
		if err != nil {
			return 0, err
		}
	}
	cw.Flush()

	return len(entries), cw.Error()
}

func (s *LedgerService) readable(ctx context.Context, repos *repository.Repositories, identity model.Identity, goalID string) error {
	goal, err := loadGoal(ctx, repos, goalID, false)
	if err != nil {
		return persistence("load goal", err)
	}
	return persistence("authorize", authorize(ctx, repos, identity, goal, accessRead))
}
