package model

import "time"

const (
	GroupRoleAdmin  = "admin"
	GroupRoleMember = "member"
)

// GroupMember is a row of the group_members join table.
type GroupMember struct {
	GroupID   string    `db:"group_id"`
	UserID    string    `db:"user_id"`
	Role      string    `db:"role"`
	CreatedAt time.Time `db:"created_at"`
}

func (m *GroupMember) IsAdmin() bool {
	return m.Role == GroupRoleAdmin
}
