package model

import (
	"time"
)

const (
	GoalStatusPending      = "pending"
	GoalStatusExpired      = "expired"
	GoalStatusAccomplished = "accomplished"
)

type Goal struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	GroupID        *string   `db:"group_id" json:"group_id,omitempty"`
	Description    string    `db:"description" json:"description"`
	AmountRequired Money     `db:"amount_required" json:"amount_required"`
	Deadline       time.Time `db:"deadline" json:"deadline"`
	MonthlyIncome  Money     `db:"monthly_income" json:"monthly_income"`
	AmountSaved    Money     `db:"amount_saved" json:"amount_saved"` // cache of the ledger sum
	Complete       bool      `db:"complete" json:"complete"`
	Status         string    `db:"status" json:"status"`
	Edited         bool      `db:"edited" json:"edited"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

func (g *Goal) IsGroupGoal() bool {
	return g.GroupID != nil && *g.GroupID != ""
}

func (g *Goal) IsPending() bool {
	return g.Status == GoalStatusPending
}

// Owner identifies who a goal belongs to: a user alone, or a group with the
// user who created the goal on its behalf.
type Owner struct {
	UserID  string
	GroupID string
}

func (o Owner) IsGroup() bool {
	return o.GroupID != ""
}

// Deadline normalizes a calendar date to UTC midnight.
func Deadline(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDeadline parses a YYYY-MM-DD date as UTC midnight.
func ParseDeadline(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	return Deadline(t), nil
}

type GoalPage struct {
	Items []*Goal `json:"items"`
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
	Total int     `json:"total"`
}
