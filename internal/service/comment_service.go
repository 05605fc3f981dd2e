package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/studyhive/studyhive-api/internal/gateway"
	"github.com/studyhive/studyhive-api/internal/models"
	appErrors "github.com/studyhive/studyhive-api/pkg/errors"
)

type commentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	FindByID(ctx context.Context, id string) (*models.Comment, error)
	ListByResource(ctx context.Context, filter models.CommentFilter) ([]models.Comment, int, error)
	Delete(ctx context.Context, id string) error
}

type commentResourceRepository interface {
	FindByID(ctx context.Context, id string) (*models.Resource, error)
	AdjustCommentCount(ctx context.Context, resourceID string, delta int) (int, error)
	Stats(ctx context.Context, resourceID string) (*models.ResourceStats, error)
}

// CommentService stores comments as rows of their own and keeps the
// resource's comment counter in step.
type CommentService struct {
	repo       commentRepository
	resources  commentResourceRepository
	activities activityRecorder
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewCommentService constructs a CommentService.
func NewCommentService(repo commentRepository, resources commentResourceRepository, activities activityRecorder, validate *validator.Validate, logger *zap.Logger) *CommentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CommentService{repo: repo, resources: resources, activities: activities, validator: validate, logger: logger}
}

// Create posts a comment on a resource.
func (s *CommentService) Create(ctx context.Context, actor *models.JWTClaims, resourceID string, req models.CreateCommentRequest) (*models.Comment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}

	resource, err := s.resources.FindByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}

	comment := &models.Comment{
		ResourceID: resourceID,
		UserID:     actor.UserID,
		AuthorName: actor.FullName,
		AuthorRole: actor.Role,
		Body:       req.Body,
	}
	if err := s.repo.Create(ctx, comment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create comment")
	}

	if _, err := s.resources.AdjustCommentCount(ctx, resourceID, 1); err != nil {
		s.logger.Warn("failed to bump comment counter", zap.String("resource_id", resourceID), zap.Error(err))
	}

	s.activities.Record(actor.UserID, models.ActivityComment, &comment.ResourceID, "")

	if stats, err := s.resources.Stats(ctx, resourceID); err == nil {
		gateway.EmitResourceInteraction(gateway.UserRoom(resource.UploaderID), models.ResourceInteractionEvent{
			ResourceID: resourceID,
			Kind:       "comment",
			Stats:      *stats,
			ActorID:    actor.UserID,
		})
	}
	return comment, nil
}

// List returns a resource's comments newest first.
func (s *CommentService) List(ctx context.Context, filter models.CommentFilter) ([]models.Comment, *models.Pagination, error) {
	comments, total, err := s.repo.ListByResource(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return comments, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Delete removes a comment. Authors delete their own; admins delete any.
func (s *CommentService) Delete(ctx context.Context, actor *models.JWTClaims, commentID string) error {
	comment, err := s.repo.FindByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "comment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load comment")
	}
	if comment.UserID != actor.UserID && actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrNotOwner, "only the author may delete this comment")
	}

	if err := s.repo.Delete(ctx, commentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "comment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete comment")
	}

	if _, err := s.resources.AdjustCommentCount(ctx, comment.ResourceID, -1); err != nil {
		s.logger.Warn("failed to lower comment counter", zap.String("resource_id", comment.ResourceID), zap.Error(err))
	}
	return nil
}
