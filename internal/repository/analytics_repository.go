package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/studyhive/studyhive-api/internal/models"
)

// AnalyticsRepository exposes read-optimised aggregate queries for the
// admin analytics endpoints.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// CountUsers returns the number of active users.
func (r *AnalyticsRepository) CountUsers(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM users WHERE active = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// CountResources returns the number of resources.
func (r *AnalyticsRepository) CountResources(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM resources`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count resources: %w", err)
	}
	return count, nil
}

// SumDownloads returns the total download count across all resources.
func (r *AnalyticsRepository) SumDownloads(ctx context.Context) (int, error) {
	const query = `SELECT COALESCE(SUM(downloads), 0) FROM resources`
	var sum int
	if err := r.db.GetContext(ctx, &sum, query); err != nil {
		return 0, fmt.Errorf("sum downloads: %w", err)
	}
	return sum, nil
}

// ResourcesByDepartment aggregates resource counts per department.
func (r *AnalyticsRepository) ResourcesByDepartment(ctx context.Context) ([]models.DepartmentResourceCount, error) {
	const query = `SELECT department, COUNT(*) AS count FROM resources GROUP BY department ORDER BY count DESC`
	var counts []models.DepartmentResourceCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("resources by department: %w", err)
	}
	return counts, nil
}

// ResourcesByType aggregates resource counts per type.
func (r *AnalyticsRepository) ResourcesByType(ctx context.Context) ([]models.TypeResourceCount, error) {
	const query = `SELECT type, COUNT(*) AS count FROM resources GROUP BY type ORDER BY count DESC`
	var counts []models.TypeResourceCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("resources by type: %w", err)
	}
	return counts, nil
}

// TopResources ranks resources by the given counter column. Only known
// counter columns are accepted to keep the identifier out of user hands.
func (r *AnalyticsRepository) TopResources(ctx context.Context, metric string, limit int) ([]models.TopResource, error) {
	allowed := map[string]bool{"views": true, "likes": true, "downloads": true, "comments": true}
	if !allowed[metric] {
		return nil, fmt.Errorf("top resources: unknown metric %q", metric)
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	query := fmt.Sprintf(`SELECT id AS resource_id, title, department, %s AS metric FROM resources ORDER BY %s DESC, created_at DESC LIMIT %d`, metric, metric, limit)
	var top []models.TopResource
	if err := r.db.SelectContext(ctx, &top, query); err != nil {
		return nil, fmt.Errorf("top resources by %s: %w", metric, err)
	}
	return top, nil
}

// UploadTrend returns daily upload counts since the given day, oldest first.
func (r *AnalyticsRepository) UploadTrend(ctx context.Context, since time.Time) ([]models.UploadTrendPoint, error) {
	const query = `SELECT DATE_TRUNC('day', created_at) AS day, COUNT(*) AS count FROM resources WHERE created_at >= $1 GROUP BY day ORDER BY day ASC`
	var points []models.UploadTrendPoint
	if err := r.db.SelectContext(ctx, &points, query, since); err != nil {
		return nil, fmt.Errorf("upload trend: %w", err)
	}
	return points, nil
}
