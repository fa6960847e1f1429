package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/brokeshield/brokeshield/internal/model"
	"github.com/jmoiron/sqlx"
)

var (
	ErrMemberNotFound = errors.New("group member not found")
)

type GroupMemberRepository interface {
	Add(ctx context.Context, member *model.GroupMember) error
	Member(ctx context.Context, groupID, userID string) (*model.GroupMember, error)
	Members(ctx context.Context, groupID string) ([]*model.GroupMember, error)
	Remove(ctx context.Context, groupID, userID string) error
}

type groupMemberRepository struct {
	db sqlx.ExtContext
}

func NewGroupMemberRepository(db sqlx.ExtContext) GroupMemberRepository {
	return &groupMemberRepository{db: db}
}

// Add inserts a membership or updates the role of an existing one.
func (r *groupMemberRepository) Add(ctx context.Context, member *model.GroupMember) error {
	query := `INSERT INTO group_members (group_id, user_id, role, created_at) VALUES ($1, $2, $3, $4)
	          ON CONFLICT (group_id, user_id) DO UPDATE SET role = excluded.role`

	_, err := r.db.ExecContext(ctx, query, member.GroupID, member.UserID, member.Role, member.CreatedAt.UTC())
	return err
}

func (r *groupMemberRepository) Member(ctx context.Context, groupID, userID string) (*model.GroupMember, error) {
	member := &model.GroupMember{}
	query := `SELECT * FROM group_members WHERE group_id = $1 AND user_id = $2`

	err := sqlx.GetContext(ctx, r.db, member, query, groupID, userID)
	if err == sql.ErrNoRows {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}

	return member, nil
}

func (r *groupMemberRepository) Members(ctx context.Context, groupID string) ([]*model.GroupMember, error) {
	var members []*model.GroupMember
	query := `SELECT * FROM group_members WHERE group_id = $1 ORDER BY created_at ASC, user_id ASC`

	err := sqlx.SelectContext(ctx, r.db, &members, query, groupID)
	if err != nil {
		return nil, err
	}

	return members, nil
}

func (r *groupMemberRepository) Remove(ctx context.Context, groupID, userID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrMemberNotFound
	}

	return nil
}
