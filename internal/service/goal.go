package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brokeshield/brokeshield/internal/db"
	"github.com/brokeshield/brokeshield/internal/model"
	"github.com/brokeshield/brokeshield/internal/projection"
	"github.com/brokeshield/brokeshield/internal/repository"
	"github.com/brokeshield/brokeshield/internal/validation"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type CreateGoalInput struct {
	GroupID        string
	Description    string
	AmountRequired model.Money
	Deadline       time.Time
	MonthlyIncome  model.Money
	AmountSaved    model.Money
}

// UpdateTermsInput replaces only the fields that are set.
type UpdateTermsInput struct {
	Description    *string
	AmountRequired *model.Money
	Deadline       *time.Time
	MonthlyIncome  *model.Money
}

type GoalQuery struct {
	GroupID string
	Filter  string
	Page    int
	Limit   int
}

type GoalProjection struct {
	Goal      *model.Goal          `json:"goal"`
	Remaining projection.Remaining `json:"remaining"`
	Savings   projection.Result    `json:"savings"`
}

type GoalService struct {
	db  *sqlx.DB
	log *slog.Logger
	now func() time.Time
}

func NewGoalService(db *sqlx.DB, log *slog.Logger) *GoalService {
	return &GoalService{
		db:  db,
		log: log,
		now: time.Now,
	}
}

func (s *GoalService) Create(ctx context.Context, identity model.Identity, in CreateGoalInput) (*model.Goal, error) {
	if !identity.Valid() {
		return nil, ErrForbidden
	}

	now := s.now().UTC()
	description := strings.TrimSpace(in.Description)
	deadline := model.Deadline(in.Deadline)
	if err := validateTerms(description, in.AmountRequired, in.MonthlyIncome, deadline, now); err != nil {
		return nil, err
	}
	if in.AmountSaved < 0 {
		return nil, invalid("amount saved must not be negative")
	}

	owner := model.Owner{UserID: identity.UserID, GroupID: in.GroupID}
	goal := &model.Goal{
		ID:             uuid.New().String(),
		UserID:         identity.UserID,
		Description:    description,
		AmountRequired: in.AmountRequired,
		Deadline:       deadline,
		MonthlyIncome:  in.MonthlyIncome,
		AmountSaved:    in.AmountSaved,
		Status:         model.GoalStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if owner.IsGroup() {
		groupID := owner.GroupID
		goal.GroupID = &groupID
	}

	err := db.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repos := repository.New(tx)

		if owner.IsGroup() {
			if err := requireMember(ctx, repos, identity, owner.GroupID, true); err != nil {
				return err
			}
		}

		_, err := repos.Goals.OpenByDescription(ctx, owner, description, now)
		if err == nil {
			return fmt.Errorf("%w: an open goal %q already exists", ErrConflict, description)
		}
		if err != repository.ErrGoalNotFound {
			return err
		}

		if err := repos.Goals.Create(ctx, goal); err != nil {
			return err
		}

		// The opening balance is the first ledger entry.
		if goal.AmountSaved > 0 {
			return repos.Contributions.Create(ctx, &model.Contribution{
				ID:            uuid.New().String(),
				GoalID:        goal.ID,
				ContributorID: identity.UserID,
				Amount:        goal.AmountSaved,
				CreatedAt:     now,
			})
		}

		return nil
	})
	if err != nil {
		return nil, persistence("create goal", err)
	}

	s.log.Info("goal created", "goal_id", goal.ID, "user_id", identity.UserID, "group_id", in.GroupID)
	return goal, nil
}

func (s *GoalService) ByID(ctx context.Context, identity model.Identity, goalID string) (*model.Goal, error) {
	repos := repository.New(s.db)

	goal, err := loadGoal(ctx, repos, goalID, false)
	if err != nil {
		return nil, persistence("load goal", err)
	}

	if err := authorize(ctx, repos, identity, goal, accessRead); err != nil {
		return nil, persistence("authorize", err)
	}

	return goal, nil
}

func (s *GoalService) Goals(ctx context.Context, identity model.Identity, q GoalQuery) (*model.GoalPage, error) {
	if !identity.Valid() {
		return nil, ErrForbidden
	}

	filter := q.Filter
	switch filter {
	case "":
		filter = repository.GoalFilterAll
	case repository.GoalFilterAll, repository.GoalFilterCompleted, repository.GoalFilterOpen, repository.GoalFilterMissed:
	default:
		return nil, invalid("unknown filter %q", q.Filter)
	}

	repos := repository.New(s.db)
	owner := model.Owner{UserID: identity.UserID, GroupID: q.GroupID}
	if owner.IsGroup() {
		if err := requireMember(ctx, repos, identity, owner.GroupID, false); err != nil {
			return nil, persistence("authorize", err)
		}
	}

	page, limit := pageBounds(q.Page, q.Limit)
	now := s.now().UTC()

	goals, err := repos.Goals.Goals(ctx, owner, filter, now, limit, (page-1)*limit)
	if err != nil {
		return nil, persistence("list goals", err)
	}

	total, err := repos.Goals.CountGoals(ctx, owner, filter, now)
	if err != nil {
		return nil, persistence("count goals", err)
	}

	if goals == nil {
		goals = []*model.Goal{}
	}

	return &model.GoalPage{
		Items: goals,
		Page:  page,
		Limit: limit,
		Total: total,
	}, nil
}

// MarkComplete records that the goal has been met as of asOf. The status
// stays pending until the completion sweep promotes it.
func (s *GoalService) MarkComplete(ctx context.Context, identity model.Identity, goalID string, asOf time.Time) (*model.Goal, error) {
	var goal *model.Goal

	err := db.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repos := repository.New(tx)

		g, err := loadGoal(ctx, repos, goalID, true)
		if err != nil {
			return err
		}

		if err := authorize(ctx, repos, identity, g, accessManage); err != nil {
			return err
		}

		if !g.IsPending() {
			return fmt.Errorf("%w: goal is already %s", ErrConflict, g.Status)
		}

		if !asOf.Before(g.Deadline) {
			return ErrExpired
		}

		saved, err := repos.Contributions.SumByGoal(ctx, g.ID)
		if err != nil {
			return err
		}
		if saved < g.AmountRequired {
			return fmt.Errorf("%w: saved %s of %s", ErrInsufficientProgress, saved, g.AmountRequired)
		}

		now := s.now().UTC()
		if err := repos.Goals.MarkComplete(ctx, g.ID, now); err != nil {
			return err
		}

		g.Complete = true
		g.UpdatedAt = now
		goal = g
		return nil
	})
	if err != nil {
		return nil, persistence("mark goal complete", err)
	}

	s.log.Info("goal marked complete", "goal_id", goalID, "user_id", identity.UserID)
	return goal, nil
}

// UpdateTerms replaces the given terms. Any edit withdraws a prior
// completion claim.
func (s *GoalService) UpdateTerms(ctx context.Context, identity model.Identity, goalID string, in UpdateTermsInput) (*model.Goal, error) {
	var goal *model.Goal
	now := s.now().UTC()

	err := db.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repos := repository.New(tx)

		g, err := loadGoal(ctx, repos, goalID, true)
		if err != nil {
			return err
		}

		if err := authorize(ctx, repos, identity, g, accessManage); err != nil {
			return err
		}

		if !g.IsPending() {
			return fmt.Errorf("%w: goal is already %s", ErrConflict, g.Status)
		}

		descriptionChanged := false
		if in.Description != nil {
			description := strings.TrimSpace(*in.Description)
			descriptionChanged = description != g.Description
			g.Description = description
		}
		if in.AmountRequired != nil {
			g.AmountRequired = *in.AmountRequired
		}
		if in.MonthlyIncome != nil {
			g.MonthlyIncome = *in.MonthlyIncome
		}

		deadline := g.Deadline
		if in.Deadline != nil {
			deadline = model.Deadline(*in.Deadline)
			g.Deadline = deadline
		} else {
			// An untouched deadline may already have passed; only new
			// deadlines have to lie in the future.
			deadline = now.Add(time.Nanosecond)
		}

		if err := validateTerms(g.Description, g.AmountRequired, g.MonthlyIncome, deadline, now); err != nil {
			return err
		}

		if descriptionChanged {
			owner := model.Owner{UserID: g.UserID}
			if g.IsGroupGoal() {
				owner.GroupID = *g.GroupID
			}
			other, err := repos.Goals.OpenByDescription(ctx, owner, g.Description, now)
			if err == nil && other.ID != g.ID {
				return fmt.Errorf("%w: an open goal %q already exists", ErrConflict, g.Description)
			}
			if err != nil && err != repository.ErrGoalNotFound {
				return err
			}
		}

		g.Complete = false
		g.Edited = true
		g.UpdatedAt = now
		if err := repos.Goals.UpdateTerms(ctx, g); err != nil {
			return err
		}

		goal = g
		return nil
	})
	if err != nil {
		return nil, persistence("update goal terms", err)
	}

	s.log.Info("goal terms updated", "goal_id", goalID, "user_id", identity.UserID)
	return goal, nil
}

func (s *GoalService) Delete(ctx context.Context, identity model.Identity, goalID string) error {
	err := db.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repos := repository.New(tx)

		// Verify ownership
		goal, err := loadGoal(ctx, repos, goalID, true)
		if err != nil {
			return err
		}
		if err := authorize(ctx, repos, identity, goal, accessManage); err != nil {
			return err
		}

		return repos.Goals.Delete(ctx, goalID)
	})
	if err != nil {
		return persistence("delete goal", err)
	}

	s.log.Info("goal deleted", "goal_id", goalID, "user_id", identity.UserID)
	return nil
}

// Projection reports time left and the daily savings needed as of asOf,
// using the ledger sum as the amount saved.
func (s *GoalService) Projection(ctx context.Context, identity model.Identity, goalID string, asOf time.Time) (*GoalProjection, error) {
	repos := repository.New(s.db)

	goal, err := loadGoal(ctx, repos, goalID, false)
	if err != nil {
		return nil, persistence("load goal", err)
	}
	if err := authorize(ctx, repos, identity, goal, accessRead); err != nil {
		return nil, persistence("authorize", err)
	}

	saved, err := repos.Contributions.SumByGoal(ctx, goal.ID)
	if err != nil {
		return nil, persistence("sum contributions", err)
	}

	return &GoalProjection{
		Goal:      goal,
		Remaining: projection.TimeRemaining(goal.Deadline, asOf),
		Savings: projection.RequiredDailySavings(projection.Input{
			AmountRequired: goal.AmountRequired.Decimal(),
			AmountSaved:    saved.Decimal(),
			MonthlyIncome:  goal.MonthlyIncome.Decimal(),
			Deadline:       goal.Deadline,
			AsOf:           asOf,
		}),
	}, nil
}

func validateTerms(description string, amountRequired, monthlyIncome model.Money, deadline, now time.Time) error {
	if err := validation.ValidateDescription(description); err != nil {
		return invalid("%v", err)
	}
	if amountRequired < 0 {
		return invalid("amount required must not be negative")
	}
	if monthlyIncome < 0 {
		return invalid("monthly income must not be negative")
	}
	if !deadline.After(now) {
		return invalid("deadline must be in the future")
	}
	return nil
}
