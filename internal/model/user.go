package model

import (
	"time"
)

// User mirrors the identity provider's account record. Only what the core
// needs for notifications is kept.
type User struct {
	ID        string    `db:"id"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
}

// Identity is the resolved, authenticated caller of a core operation.
type Identity struct {
	UserID string
	Email  string
}

func (i Identity) Valid() bool {
	return i.UserID != ""
}
