package models

import "time"

// ActivityAction enumerates the recorded user actions.
type ActivityAction string

const (
	ActivityUpload   ActivityAction = "UPLOAD"
	ActivityDownload ActivityAction = "DOWNLOAD"
	ActivityView     ActivityAction = "VIEW"
	ActivityLike     ActivityAction = "LIKE"
	ActivityUnlike   ActivityAction = "UNLIKE"
	ActivityComment  ActivityAction = "COMMENT"
	ActivityShare    ActivityAction = "SHARE"
)

// Activity is one row in the activity log.
type Activity struct {
	ID         string         `db:"id" json:"id"`
	UserID     string         `db:"user_id" json:"user_id"`
	Action     ActivityAction `db:"action" json:"action"`
	ResourceID *string        `db:"resource_id" json:"resource_id,omitempty"`
	Detail     string         `db:"detail" json:"detail,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// ActivityFilter pages through activity rows.
type ActivityFilter struct {
	UserID     string
	ResourceID string
	Action     *ActivityAction
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}
