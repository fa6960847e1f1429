package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/brokeshield/brokeshield/internal/model"
	"github.com/jmoiron/sqlx"
)

const (
	GoalFilterAll       = "all"
	GoalFilterCompleted = "completed"
	GoalFilterOpen      = "open"
	GoalFilterMissed    = "missed"
)

var (
	ErrGoalNotFound  = errors.New("goal not found")
	ErrSavedOverflow = errors.New("saved amount would exceed the largest storable amount")
)

type GoalRepository interface {
	Create(ctx context.Context, goal *model.Goal) error
	ByID(ctx context.Context, goalID string) (*model.Goal, error)
	ByIDForUpdate(ctx context.Context, goalID string) (*model.Goal, error)
	OpenByDescription(ctx context.Context, owner model.Owner, description string, now time.Time) (*model.Goal, error)
	Goals(ctx context.Context, owner model.Owner, filter string, now time.Time, limit, offset int) ([]*model.Goal, error)
	CountGoals(ctx context.Context, owner model.Owner, filter string, now time.Time) (int, error)
	UpdateTerms(ctx context.Context, goal *model.Goal) error
	MarkComplete(ctx context.Context, goalID string, now time.Time) error
	ClearComplete(ctx context.Context, goalID string, now time.Time) error
	IncrementSaved(ctx context.Context, goalID string, amount model.Money, now time.Time) error
	SetSaved(ctx context.Context, goalID string, amount model.Money, now time.Time) error
	DueForExpiry(ctx context.Context, now time.Time) ([]*model.Goal, error)
	DueForPromotion(ctx context.Context) ([]*model.Goal, error)
	Transition(ctx context.Context, goalID, from, to string, now time.Time) (bool, error)
	Delete(ctx context.Context, goalID string) error
}

type goalRepository struct {
	db sqlx.ExtContext
}

// NewGoalRepository accepts either a *sqlx.DB or a *sqlx.Tx.
func NewGoalRepository(db sqlx.ExtContext) GoalRepository {
	return &goalRepository{db: db}
}

func (r *goalRepository) Create(ctx context.Context, goal *model.Goal) error {
	query := `INSERT INTO goals (id, user_id, group_id, description, amount_required, deadline, monthly_income,
	                             amount_saved, complete, status, edited, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.ExecContext(ctx, query,
		goal.ID,
		goal.UserID,
		goal.GroupID,
		goal.Description,
		goal.AmountRequired,
		goal.Deadline.UTC(),
		goal.MonthlyIncome,
		goal.AmountSaved,
		goal.Complete,
		goal.Status,
		goal.Edited,
		goal.CreatedAt.UTC(),
		goal.UpdatedAt.UTC(),
	)

	return err
}

func (r *goalRepository) ByID(ctx context.Context, goalID string) (*model.Goal, error) {
	return r.get(ctx, `SELECT * FROM goals WHERE id = $1`, goalID)
}

// ByIDForUpdate locks the row on PostgreSQL. SQLite transactions opened with
// _txlock=immediate already hold the database write lock.
func (r *goalRepository) ByIDForUpdate(ctx context.Context, goalID string) (*model.Goal, error) {
	return r.get(ctx, `SELECT * FROM goals WHERE id = $1`+r.lockClause(""), goalID)
}

func (r *goalRepository) get(ctx context.Context, query string, args ...any) (*model.Goal, error) {
	goal := &model.Goal{}
	err := sqlx.GetContext(ctx, r.db, goal, query, args...)
	if err == sql.ErrNoRows {
		return nil, ErrGoalNotFound
	}
	if err != nil {
		return nil, err
	}

	return goal, nil
}

func (r *goalRepository) OpenByDescription(ctx context.Context, owner model.Owner, description string, now time.Time) (*model.Goal, error) {
	where, args := ownerClause(owner)
	args = append(args, description, now.UTC())
	query := `SELECT * FROM goals WHERE ` + where + `
	          AND description = $` + itoa(len(args)-1) + `
	          AND complete = FALSE AND status = 'pending' AND deadline >= $` + itoa(len(args)) + `
	          LIMIT 1`

	return r.get(ctx, query, args...)
}

func (r *goalRepository) Goals(ctx context.Context, owner model.Owner, filter string, now time.Time, limit, offset int) ([]*model.Goal, error) {
	var goals []*model.Goal

	where, args := r.filtered(owner, filter, now)
	args = append(args, limit, offset)
	query := `SELECT * FROM goals WHERE ` + where + `
	          ORDER BY created_at DESC, id DESC
	          LIMIT $` + itoa(len(args)-1) + ` OFFSET $` + itoa(len(args))

	err := sqlx.SelectContext(ctx, r.db, &goals, query, args...)
	if err != nil {
		return nil, err
	}

	return goals, nil
}

func (r *goalRepository) CountGoals(ctx context.Context, owner model.Owner, filter string, now time.Time) (int, error) {
	var count int
	where, args := r.filtered(owner, filter, now)
	err := sqlx.GetContext(ctx, r.db, &count, `SELECT COUNT(*) FROM goals WHERE `+where, args...)
	return count, err
}

func (r *goalRepository) filtered(owner model.Owner, filter string, now time.Time) (string, []any) {
	where, args := ownerClause(owner)

	switch filter {
	case GoalFilterCompleted:
		where += ` AND complete = TRUE`
	case GoalFilterOpen:
		where += ` AND complete = FALSE`
	case GoalFilterMissed:
		args = append(args, now.UTC())
		where += ` AND complete = FALSE AND deadline <= $` + itoa(len(args))
	}

	return where, args
}

func ownerClause(owner model.Owner) (string, []any) {
	if owner.IsGroup() {
		return `group_id = $1`, []any{owner.GroupID}
	}
	return `user_id = $1 AND group_id IS NULL`, []any{owner.UserID}
}

func (r *goalRepository) UpdateTerms(ctx context.Context, goal *model.Goal) error {
	query := `UPDATE goals
	          SET description = $1, amount_required = $2, deadline = $3, monthly_income = $4,
	              complete = FALSE, edited = TRUE, updated_at = $5
	          WHERE id = $6 AND status = 'pending'`

	return r.exec(ctx, query,
		goal.Description,
		goal.AmountRequired,
		goal.Deadline.UTC(),
		goal.MonthlyIncome,
		goal.UpdatedAt.UTC(),
		goal.ID,
	)
}

func (r *goalRepository) MarkComplete(ctx context.Context, goalID string, now time.Time) error {
	query := `UPDATE goals SET complete = TRUE, updated_at = $1 WHERE id = $2 AND status = 'pending'`
	return r.exec(ctx, query, now.UTC(), goalID)
}

func (r *goalRepository) ClearComplete(ctx context.Context, goalID string, now time.Time) error {
	query := `UPDATE goals SET complete = FALSE, updated_at = $1 WHERE id = $2 AND status = 'pending'`
	return r.exec(ctx, query, now.UTC(), goalID)
}

// IncrementSaved adds amount to the cached aggregate in a single statement so
// concurrent postings cannot overwrite each other. A total past MaxMoney is
// refused with ErrSavedOverflow.
func (r *goalRepository) IncrementSaved(ctx context.Context, goalID string, amount model.Money, now time.Time) error {
	headroom := model.MaxMoney
	if amount > 0 {
		headroom -= amount
	}

	query := `UPDATE goals SET amount_saved = amount_saved + $1, updated_at = $2 WHERE id = $3 AND amount_saved <= $4`
	err := r.exec(ctx, query, amount, now.UTC(), goalID, headroom)
	if err != ErrGoalNotFound {
		return err
	}

	if _, err := r.ByID(ctx, goalID); err != nil {
		return err
	}
	return ErrSavedOverflow
}

func (r *goalRepository) SetSaved(ctx context.Context, goalID string, amount model.Money, now time.Time) error {
	query := `UPDATE goals SET amount_saved = $1, updated_at = $2 WHERE id = $3`
	return r.exec(ctx, query, amount, now.UTC(), goalID)
}

func (r *goalRepository) DueForExpiry(ctx context.Context, now time.Time) ([]*model.Goal, error) {
	var goals []*model.Goal
	query := `SELECT * FROM goals
	          WHERE status = 'pending' AND complete = FALSE AND deadline < $1
	          ORDER BY deadline ASC` + r.lockClause("SKIP LOCKED")

	err := sqlx.SelectContext(ctx, r.db, &goals, query, now.UTC())
	if err != nil {
		return nil, err
	}

	return goals, nil
}

func (r *goalRepository) DueForPromotion(ctx context.Context) ([]*model.Goal, error) {
	var goals []*model.Goal
	query := `SELECT * FROM goals
	          WHERE status = 'pending' AND complete = TRUE
	          ORDER BY updated_at ASC` + r.lockClause("SKIP LOCKED")

	err := sqlx.SelectContext(ctx, r.db, &goals, query)
	if err != nil {
		return nil, err
	}

	return goals, nil
}

// Transition moves a goal from one status to another. It reports false when
// the goal was no longer in the from status.
func (r *goalRepository) Transition(ctx context.Context, goalID, from, to string, now time.Time) (bool, error) {
	query := `UPDATE goals SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	err := r.exec(ctx, query, to, now.UTC(), goalID, from)
	if err == ErrGoalNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r *goalRepository) Delete(ctx context.Context, goalID string) error {
	return r.exec(ctx, `DELETE FROM goals WHERE id = $1`, goalID)
}

func (r *goalRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrGoalNotFound
	}

	return nil
}

func (r *goalRepository) lockClause(modifier string) string {
	if r.db.DriverName() != "pgx" {
		return ""
	}
	if modifier == "" {
		return " FOR UPDATE"
	}
	return " FOR UPDATE " + modifier
}
