package models

import "time"

// NotificationType enumerates notification categories.
type NotificationType string

const (
	NotificationNewResource NotificationType = "NEW_RESOURCE"
	NotificationComment     NotificationType = "COMMENT"
	NotificationLike        NotificationType = "LIKE"
	NotificationSystem      NotificationType = "SYSTEM"
)

// Notification is one user's copy of a dispatched event.
type Notification struct {
	ID         string           `db:"id" json:"id"`
	UserID     string           `db:"user_id" json:"user_id"`
	Type       NotificationType `db:"type" json:"type"`
	Title      string           `db:"title" json:"title"`
	Message    string           `db:"message" json:"message"`
	ResourceID *string          `db:"resource_id" json:"resource_id,omitempty"`
	Read       bool             `db:"read" json:"read"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter pages through a user's notifications.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}
