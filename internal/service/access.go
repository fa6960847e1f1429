package service

import (
	"context"
	"fmt"

	"github.com/brokeshield/brokeshield/internal/model"
	"github.com/brokeshield/brokeshield/internal/repository"
)

type access int

const (
	accessRead access = iota
	accessContribute
	accessManage
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// authorize checks identity against a loaded goal. Callers that may not see
// the goal get ErrNotFound so goal ids do not leak across owners.
func authorize(ctx context.Context, repos *repository.Repositories, identity model.Identity, goal *model.Goal, want access) error {
	if !identity.Valid() {
		return ErrForbidden
	}

	if !goal.IsGroupGoal() {
		if goal.UserID != identity.UserID {
			return notFound(repository.ErrGoalNotFound)
		}
		return nil
	}

	member, err := repos.Members.Member(ctx, *goal.GroupID, identity.UserID)
	if err == repository.ErrMemberNotFound {
		return notFound(repository.ErrGoalNotFound)
	}
	if err != nil {
		return err
	}

	if want == accessManage && !member.IsAdmin() {
		return fmt.Errorf("%w: only group admins can manage group goals", ErrForbidden)
	}

	return nil
}

func requireMember(ctx context.Context, repos *repository.Repositories, identity model.Identity, groupID string, admin bool) error {
	if !identity.Valid() {
		return ErrForbidden
	}

	member, err := repos.Members.Member(ctx, groupID, identity.UserID)
	if err == repository.ErrMemberNotFound {
		return fmt.Errorf("%w: not a member of group %s", ErrForbidden, groupID)
	}
	if err != nil {
		return err
	}

	if admin && !member.IsAdmin() {
		return fmt.Errorf("%w: only group admins can manage group goals", ErrForbidden)
	}

	return nil
}

func loadGoal(ctx context.Context, repos *repository.Repositories, goalID string, forUpdate bool) (*model.Goal, error) {
	load := repos.Goals.ByID
	if forUpdate {
		load = repos.Goals.ByIDForUpdate
	}

	goal, err := load(ctx, goalID)
	if err == repository.ErrGoalNotFound {
		return nil, notFound(err)
	}
	if err != nil {
		return nil, err
	}

	return goal, nil
}

func pageBounds(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}
