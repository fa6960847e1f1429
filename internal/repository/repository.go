package repository

import (
	"strconv"

	"github.com/jmoiron/sqlx"
)

// Repositories bundles every repository over one handle, either the pool or
// an open transaction.
type Repositories struct {
	Goals         GoalRepository
	Contributions ContributionRepository
	Users         UserRepository
	Members       GroupMemberRepository
	Leases        LeaseRepository
}

func New(db sqlx.ExtContext) *Repositories {
	return &Repositories{
		Goals:         NewGoalRepository(db),
		Contributions: NewContributionRepository(db),
		Users:         NewUserRepository(db),
		Members:       NewGroupMemberRepository(db),
		Leases:        NewLeaseRepository(db),
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
