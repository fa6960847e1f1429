package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// LeaseRepository guards jobs that must not run concurrently across
// processes. A lease is held until it expires or its holder releases it.
type LeaseRepository interface {
	Acquire(ctx context.Context, name, holder string, now time.Time, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, holder string) error
}

type leaseRepository struct {
	db sqlx.ExtContext
}

func NewLeaseRepository(db sqlx.ExtContext) LeaseRepository {
	return &leaseRepository{db: db}
}

// Acquire takes the named lease when it is free, expired, or already held by
// holder. It reports whether the caller now holds the lease.
func (r *leaseRepository) Acquire(ctx context.Context, name, holder string, now time.Time, ttl time.Duration) (bool, error) {
	query := `INSERT INTO sweeper_leases (name, holder, expires_at) VALUES ($1, $2, $3)
	          ON CONFLICT (name) DO UPDATE SET holder = excluded.holder, expires_at = excluded.expires_at
	          WHERE sweeper_leases.expires_at <= $4 OR sweeper_leases.holder = excluded.holder`

	now = now.UTC()
	result, err := r.db.ExecContext(ctx, query, name, holder, now.Add(ttl), now)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows == 1, nil
}

func (r *leaseRepository) Release(ctx context.Context, name, holder string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sweeper_leases WHERE name = $1 AND holder = $2`, name, holder)
	return err
}
