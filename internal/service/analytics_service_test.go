package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studyhive/studyhive-api/internal/models"
)

type mockAnalyticsRepo struct {
	users            int
	resources        int
	downloads        int
	byDepartment     []models.DepartmentResourceCount
	byType           []models.TypeResourceCount
	top              map[string][]models.TopResource
	trend            []models.UploadTrendPoint
	countUsersErr    error
	sumDownloadsErr  error
	byDepartmentErr  error
	topResourcesErr  error
	uploadTrendErr   error
	countResourceErr error
}

func (m *mockAnalyticsRepo) CountUsers(ctx context.Context) (int, error) {
	return m.users, m.countUsersErr
}

func (m *mockAnalyticsRepo) CountResources(ctx context.Context) (int, error) {
	return m.resources, m.countResourceErr
}

func (m *mockAnalyticsRepo) SumDownloads(ctx context.Context) (int, error) {
	return m.downloads, m.sumDownloadsErr
}

func (m *mockAnalyticsRepo) ResourcesByDepartment(ctx context.Context) ([]models.DepartmentResourceCount, error) {
	return m.byDepartment, m.byDepartmentErr
}

func (m *mockAnalyticsRepo) ResourcesByType(ctx context.Context) ([]models.TypeResourceCount, error) {
	return m.byType, nil
}

func (m *mockAnalyticsRepo) TopResources(ctx context.Context, metric string, limit int) ([]models.TopResource, error) {
	if m.topResourcesErr != nil {
		return nil, m.topResourcesErr
	}
	return m.top[metric], nil
}

func (m *mockAnalyticsRepo) UploadTrend(ctx context.Context, since time.Time) ([]models.UploadTrendPoint, error) {
	return m.trend, m.uploadTrendErr
}

type mockActiveUsersRepo struct {
	active int
	err    error
}

func (m *mockActiveUsersRepo) CountActiveUsersSince(ctx context.Context, ts time.Time) (int, error) {
	return m.active, m.err
}

func healthyAnalyticsRepo() *mockAnalyticsRepo {
	return &mockAnalyticsRepo{
		users:     120,
		resources: 45,
		downloads: 900,
		byDepartment: []models.DepartmentResourceCount{
			{Department: "CSE", Count: 30},
			{Department: "ECE", Count: 15},
		},
		byType: []models.TypeResourceCount{{Type: models.ResourceNote, Count: 40}},
		top: map[string][]models.TopResource{
			"views": {{ResourceID: "r1", Title: "OS Notes", Metric: 200}},
			"likes": {{ResourceID: "r2", Title: "DBMS Slides", Metric: 80}},
		},
		trend: []models.UploadTrendPoint{{Day: time.Now().UTC(), Count: 3}},
	}
}

func TestOverviewAssemblesAllSections(t *testing.T) {
	svc := NewAnalyticsService(healthyAnalyticsRepo(), &mockActiveUsersRepo{active: 37}, nil, zap.NewNop(), time.Minute)

	overview, err := svc.Overview(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 120, overview.TotalUsers)
	assert.Equal(t, 45, overview.TotalResources)
	assert.Equal(t, 900, overview.TotalDownloads)
	assert.Equal(t, 37, overview.ActiveUsers7d)
	assert.Len(t, overview.ByDepartment, 2)
	assert.Len(t, overview.TopByViews, 1)
	assert.Len(t, overview.TopByLikes, 1)
	assert.Empty(t, overview.Degraded)
	assert.False(t, overview.GeneratedAt.IsZero())
}

func TestOverviewDegradesFailedSections(t *testing.T) {
	repo := healthyAnalyticsRepo()
	repo.sumDownloadsErr = errors.New("aggregate timeout")
	repo.topResourcesErr = errors.New("aggregate timeout")
	svc := NewAnalyticsService(repo, &mockActiveUsersRepo{active: 5}, nil, zap.NewNop(), time.Minute)

	overview, err := svc.Overview(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, overview.TotalDownloads)
	assert.Equal(t, 120, overview.TotalUsers)
	assert.NotNil(t, overview.TopByViews)
	assert.Empty(t, overview.TopByViews)
	assert.ElementsMatch(t, []string{"total_downloads", "top_by_views", "top_by_likes"}, overview.Degraded)
}

func TestOverviewSurvivesActivityRepoFailure(t *testing.T) {
	svc := NewAnalyticsService(healthyAnalyticsRepo(), &mockActiveUsersRepo{err: errors.New("db down")}, nil, zap.NewNop(), time.Minute)

	overview, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, overview.ActiveUsers7d)
	assert.Contains(t, overview.Degraded, "active_users_7d")
}
