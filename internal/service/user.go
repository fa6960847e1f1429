package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/brokeshield/brokeshield/internal/model"
	"github.com/brokeshield/brokeshield/internal/repository"
	"github.com/brokeshield/brokeshield/internal/validation"
	"github.com/jmoiron/sqlx"
)

type UserService struct {
	db  *sqlx.DB
	log *slog.Logger
	now func() time.Time
}

func NewUserService(db *sqlx.DB, log *slog.Logger) *UserService {
	return &UserService{
		db:  db,
		log: log,
		now: time.Now,
	}
}

// Resolve records an authenticated identity so notifications can reach it.
func (s *UserService) Resolve(ctx context.Context, identity model.Identity) error {
	if !identity.Valid() {
		return ErrForbidden
	}
	if identity.Email != "" {
		if err := validation.ValidateEmail(identity.Email); err != nil {
			return invalid("%v", err)
		}
	}

	user := &model.User{
		ID:        identity.UserID,
		Email:     identity.Email,
		CreatedAt: s.now().UTC(),
	}
	if err := repository.NewUserRepository(s.db).Upsert(ctx, user); err != nil {
		return persistence("upsert user", err)
	}

	return nil
}

func (s *UserService) ByID(ctx context.Context, id string) (*model.User, error) {
	user, err := repository.NewUserRepository(s.db).ByID(ctx, id)
	if err == repository.ErrUserNotFound {
		return nil, notFound(err)
	}
	if err != nil {
		return nil, persistence("load user", err)
	}

	return user, nil
}

// AddGroupMember grants userID a role in groupID. Group administration lives
// outside the core; this is the seam the CLI and tests use to populate it.
func (s *UserService) AddGroupMember(ctx context.Context, groupID, userID, role string) error {
	if groupID == "" || userID == "" {
		return invalid("group and user are required")
	}
	if role != model.GroupRoleAdmin && role != model.GroupRoleMember {
		return invalid("unknown role %q", role)
	}

	repos := repository.New(s.db)
	if _, err := repos.Users.ByID(ctx, userID); err == repository.ErrUserNotFound {
		return notFound(err)
	} else if err != nil {
		return persistence("load user", err)
	}

	member := &model.GroupMember{
		GroupID:   groupID,
		UserID:    userID,
		Role:      role,
		CreatedAt: s.now().UTC(),
	}
	if err := repos.Members.Add(ctx, member); err != nil {
		return persistence("add group member", err)
	}

	s.log.Info("group member added", "group_id", groupID, "user_id", userID, "role", role)
	return nil
}
