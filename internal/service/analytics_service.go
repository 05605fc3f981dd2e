package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/studyhive/studyhive-api/internal/models"
	appErrors "github.com/studyhive/studyhive-api/pkg/errors"
)

type analyticsRepository interface {
	CountUsers(ctx context.Context) (int, error)
	CountResources(ctx context.Context) (int, error)
	SumDownloads(ctx context.Context) (int, error)
	ResourcesByDepartment(ctx context.Context) ([]models.DepartmentResourceCount, error)
	ResourcesByType(ctx context.Context) ([]models.TypeResourceCount, error)
	TopResources(ctx context.Context, metric string, limit int) ([]models.TopResource, error)
	UploadTrend(ctx context.Context, since time.Time) ([]models.UploadTrendPoint, error)
}

type analyticsActivityRepository interface {
	CountActiveUsersSince(ctx context.Context, ts time.Time) (int, error)
}

const analyticsOverviewCacheKey = "analytics:overview"

// AnalyticsService assembles the admin dashboard. Each section degrades
// independently: a failed aggregate is logged, listed under Degraded and
// replaced with its zero value so the rest of the report still ships.
type AnalyticsService struct {
	repo       analyticsRepository
	activities analyticsActivityRepository
	cache      *CacheService
	logger     *zap.Logger
	cacheTTL   time.Duration
}

// NewAnalyticsService constructs the analytics service.
func NewAnalyticsService(repo analyticsRepository, activities analyticsActivityRepository, cache *CacheService, logger *zap.Logger, cacheTTL time.Duration) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &AnalyticsService{repo: repo, activities: activities, cache: cache, logger: logger, cacheTTL: cacheTTL}
}

// Overview builds the dashboard snapshot, serving from cache when warm.
func (s *AnalyticsService) Overview(ctx context.Context) (*models.AnalyticsOverview, error) {
	if s.repo == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "analytics repository not configured")
	}

	var cached models.AnalyticsOverview
	if hit, err := s.cache.Get(ctx, analyticsOverviewCacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	overview := models.AnalyticsOverview{GeneratedAt: time.Now().UTC()}
	degrade := func(section string, err error) {
		s.logger.Warn("analytics section failed", zap.String("section", section), zap.Error(err))
		overview.Degraded = append(overview.Degraded, section)
	}

	var err error
	if overview.TotalUsers, err = s.repo.CountUsers(ctx); err != nil {
		degrade("total_users", err)
	}
	if overview.TotalResources, err = s.repo.CountResources(ctx); err != nil {
		degrade("total_resources", err)
	}
	if overview.TotalDownloads, err = s.repo.SumDownloads(ctx); err != nil {
		degrade("total_downloads", err)
	}
	if s.activities != nil {
		since := time.Now().UTC().AddDate(0, 0, -7)
		if overview.ActiveUsers7d, err = s.activities.CountActiveUsersSince(ctx, since); err != nil {
			degrade("active_users_7d", err)
		}
	}
	if overview.ByDepartment, err = s.repo.ResourcesByDepartment(ctx); err != nil {
		degrade("by_department", err)
		overview.ByDepartment = []models.DepartmentResourceCount{}
	}
	if overview.ByType, err = s.repo.ResourcesByType(ctx); err != nil {
		degrade("by_type", err)
		overview.ByType = []models.TypeResourceCount{}
	}
	if overview.TopByViews, err = s.repo.TopResources(ctx, "views", 10); err != nil {
		degrade("top_by_views", err)
		overview.TopByViews = []models.TopResource{}
	}
	if overview.TopByLikes, err = s.repo.TopResources(ctx, "likes", 10); err != nil {
		degrade("top_by_likes", err)
		overview.TopByLikes = []models.TopResource{}
	}
	trendSince := time.Now().UTC().AddDate(0, 0, -30)
	if overview.UploadTrend, err = s.repo.UploadTrend(ctx, trendSince); err != nil {
		degrade("upload_trend", err)
		overview.UploadTrend = []models.UploadTrendPoint{}
	}

	if len(overview.Degraded) == 0 {
		if err := s.cache.Set(ctx, analyticsOverviewCacheKey, overview, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache analytics overview", zap.Error(err))
		}
	}
	return &overview, nil
}

// InvalidateOverview drops the cached dashboard after writes that move
// the aggregates.
func (s *AnalyticsService) InvalidateOverview(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, analyticsOverviewCacheKey); err != nil {
		s.logger.Warn("failed to invalidate analytics cache", zap.Error(err))
	}
}
