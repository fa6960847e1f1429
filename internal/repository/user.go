package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/brokeshield/brokeshield/internal/model"
	"github.com/jmoiron/sqlx"
)

var (
	ErrUserNotFound = errors.New("user not found")
)

type UserRepository interface {
	Upsert(ctx context.Context, user *model.User) error
	ByID(ctx context.Context, id string) (*model.User, error)
	Delete(ctx context.Context, id string) error
}

type userRepository struct {
	db sqlx.ExtContext
}

func NewUserRepository(db sqlx.ExtContext) UserRepository {
	return &userRepository{db: db}
}

// Upsert records the identity provider's view of a user. The email is
// refreshed on every call; created_at is kept from the first insert.
func (r *userRepository) Upsert(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, email, created_at) VALUES ($1, $2, $3)
	          ON CONFLICT (id) DO UPDATE SET email = excluded.email`

	_, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.CreatedAt.UTC())
	return err
}

func (r *userRepository) ByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE id = $1`

	err := sqlx.GetContext(ctx, r.db, user, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}

	return user, err
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM users WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}
