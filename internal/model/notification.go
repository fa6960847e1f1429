package model

const (
	NotificationExpired      = "expired"
	NotificationAccomplished = "accomplished"
)

// NotificationEvent is handed to the dispatcher once a goal transition has
// been committed.
type NotificationEvent struct {
	Kind           string `json:"kind"`
	GoalID         string `json:"goal_id"`
	RecipientEmail string `json:"recipient_email"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	HTML           string `json:"html,omitempty"`
}
