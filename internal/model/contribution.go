package model

import (
	"time"
)

// Contribution is an immutable ledger entry applied toward a goal.
type Contribution struct {
	ID            string    `db:"id" json:"id"`
	GoalID        string    `db:"goal_id" json:"goal_id"`
	ContributorID string    `db:"contributor_id" json:"contributor_id"`
	Amount        Money     `db:"amount" json:"amount"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// ContributorTotal is the per-contributor sum for a goal.
type ContributorTotal struct {
	ContributorID string `db:"contributor_id" json:"contributor_id"`
	Total         Money  `db:"total" json:"total"`
}

type ContributionPage struct {
	Items        []*Contribution     `json:"items"`
	Page         int                 `json:"page"`
	Limit        int                 `json:"limit"`
	Total        int                 `json:"total"`
	GoalTotal    Money               `json:"goal_total"`
	MemberTotals []*ContributorTotal `json:"member_totals,omitempty"`
}
