package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/studyhive/studyhive-api/internal/models"
	appErrors "github.com/studyhive/studyhive-api/pkg/errors"
)

type activityRepository interface {
	Create(ctx context.Context, activity *models.Activity) error
	List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, int, error)
	CountActiveUsersSince(ctx context.Context, ts time.Time) (int, error)
}

// ActivityService records user actions off the request path and serves
// the activity feed.
type ActivityService struct {
	repo   activityRepository
	logger *zap.Logger
}

// NewActivityService constructs an ActivityService.
func NewActivityService(repo activityRepository, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{repo: repo, logger: logger}
}

// Record writes one activity row in the background. Activity logging is
// best effort and never fails the action it describes.
func (s *ActivityService) Record(userID string, action models.ActivityAction, resourceID *string, detail string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.repo.Create(ctx, &models.Activity{
			UserID:     userID,
			Action:     action,
			ResourceID: resourceID,
			Detail:     detail,
		}); err != nil {
			s.logger.Warn("failed to record activity",
				zap.String("user_id", userID),
				zap.String("action", string(action)),
				zap.Error(err),
			)
		}
	}()
}

// List returns activity rows matching the filter.
func (s *ActivityService) List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, *models.Pagination, error) {
	activities, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activities")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	return activities, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}
