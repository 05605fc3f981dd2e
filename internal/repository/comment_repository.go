package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/studyhive/studyhive-api/internal/models"
)

const commentColumns = `c.id, c.resource_id, c.user_id, u.full_name AS author_name, u.role AS author_role, c.body, c.created_at, c.updated_at`

// CommentRepository provides database access for resource comments.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository creates a new instance of CommentRepository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create inserts a comment row.
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = now
	}
	comment.UpdatedAt = now

	const query = `INSERT INTO comments (id, resource_id, user_id, body, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(ctx, query, comment.ID, comment.ResourceID, comment.UserID, comment.Body, comment.CreatedAt, comment.UpdatedAt); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// FindByID returns one comment joined with its author.
func (r *CommentRepository) FindByID(ctx context.Context, id string) (*models.Comment, error) {
	query := fmt.Sprintf(`SELECT %s FROM comments c JOIN users u ON u.id = c.user_id WHERE c.id = $1 LIMIT 1`, commentColumns)
	var comment models.Comment
	if err := r.db.GetContext(ctx, &comment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find comment by id: %w", err)
	}
	return &comment, nil
}

// ListByResource returns a resource's comments newest first with total count.
func (r *CommentRepository) ListByResource(ctx context.Context, filter models.CommentFilter) ([]models.Comment, int, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT %s FROM comments c JOIN users u ON u.id = c.user_id WHERE c.resource_id = $1 ORDER BY c.created_at DESC LIMIT %d OFFSET %d`, commentColumns, pageSize, offset)
	var comments []models.Comment
	if err := r.db.SelectContext(ctx, &comments, listQuery, filter.ResourceID); err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}

	const countQuery = `SELECT COUNT(*) FROM comments WHERE resource_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, filter.ResourceID); err != nil {
		return nil, 0, fmt.Errorf("count comments: %w", err)
	}
	return comments, total, nil
}

// Delete removes a comment row.
func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM comments WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
