package models

import "time"

// Comment is a persisted comment on a resource.
type Comment struct {
	ID         string    `db:"id" json:"id"`
	ResourceID string    `db:"resource_id" json:"resource_id"`
	UserID     string    `db:"user_id" json:"user_id"`
	AuthorName string    `db:"author_name" json:"author_name"`
	AuthorRole UserRole  `db:"author_role" json:"author_role"`
	Body       string    `db:"body" json:"body"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// CreateCommentRequest posts a new comment on a resource.
type CreateCommentRequest struct {
	Body string `json:"body" validate:"required,min=1,max=1000"`
}

// CommentFilter pages through a resource's comments.
type CommentFilter struct {
	ResourceID string
	Page       int
	PageSize   int
}
