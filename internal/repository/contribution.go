package repository

import (
	"context"

	"github.com/brokeshield/brokeshield/internal/model"
	"github.com/jmoiron/sqlx"
)

type ContributionRepository interface {
	Create(ctx context.Context, contribution *model.Contribution) error
	SumByGoal(ctx context.Context, goalID string) (model.Money, error)
	SumByContributor(ctx context.Context, goalID, contributorID string) (model.Money, error)
	TotalsByContributor(ctx context.Context, goalID string) ([]*model.ContributorTotal, error)
	Contributions(ctx context.Context, goalID string, limit, offset int) ([]*model.Contribution, error)
	Ledger(ctx context.Context, goalID string) ([]*model.Contribution, error)
	CountContributions(ctx context.Context, goalID string) (int, error)
}

type contributionRepository struct {
	db sqlx.ExtContext
}

func NewContributionRepository(db sqlx.ExtContext) ContributionRepository {
	return &contributionRepository{db: db}
}

func (r *contributionRepository) Create(ctx context.Context, contribution *model.Contribution) error {
	query := `INSERT INTO contributions (id, goal_id, contributor_id, amount, created_at)
	          VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query,
		contribution.ID,
		contribution.GoalID,
		contribution.ContributorID,
		contribution.Amount,
		contribution.CreatedAt.UTC(),
	)

	return err
}

// PostgreSQL widens SUM(bigint) to numeric, hence the casts.
func (r *contributionRepository) SumByGoal(ctx context.Context, goalID string) (model.Money, error) {
	var sum model.Money
	query := `SELECT CAST(COALESCE(SUM(amount), 0) AS BIGINT) FROM contributions WHERE goal_id = $1`

	err := sqlx.GetContext(ctx, r.db, &sum, query, goalID)
	return sum, err
}

func (r *contributionRepository) SumByContributor(ctx context.Context, goalID, contributorID string) (model.Money, error) {
	var sum model.Money
	query := `SELECT CAST(COALESCE(SUM(amount), 0) AS BIGINT) FROM contributions
	          WHERE goal_id = $1 AND contributor_id = $2`

	err := sqlx.GetContext(ctx, r.db, &sum, query, goalID, contributorID)
	return sum, err
}

func (r *contributionRepository) TotalsByContributor(ctx context.Context, goalID string) ([]*model.ContributorTotal, error) {
	var totals []*model.ContributorTotal
	query := `SELECT contributor_id, CAST(SUM(amount) AS BIGINT) AS total FROM contributions
	          WHERE goal_id = $1
	          GROUP BY contributor_id
	          ORDER BY total DESC, contributor_id ASC`

	err := sqlx.SelectContext(ctx, r.db, &totals, query, goalID)
	if err != nil {
		return nil, err
	}

	return totals, nil
}

// Contributions returns a page of entries, newest first.
func (r *contributionRepository) Contributions(ctx context.Context, goalID string, limit, offset int) ([]*model.Contribution, error) {
	var contributions []*model.Contribution
	query := `SELECT * FROM contributions WHERE goal_id = $1
	          ORDER BY created_at DESC, id DESC
	          LIMIT $2 OFFSET $3`

	err := sqlx.SelectContext(ctx, r.db, &contributions, query, goalID, limit, offset)
	if err != nil {
		return nil, err
	}

	return contributions, nil
}

// Ledger returns every entry for a goal in the order it was recorded.
func (r *contributionRepository) Ledger(ctx context.Context, goalID string) ([]*model.Contribution, error) {
	var contributions []*model.Contribution
	query := `SELECT * FROM contributions WHERE goal_id = $1 ORDER BY created_at ASC, id ASC`

	err := sqlx.SelectContext(ctx, r.db, &contributions, query, goalID)
	if err != nil {
		return nil, err
	}

	return contributions, nil
}

func (r *contributionRepository) CountContributions(ctx context.Context, goalID string) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, r.db, &count, `SELECT COUNT(*) FROM contributions WHERE goal_id = $1`, goalID)
	return count, err
}
