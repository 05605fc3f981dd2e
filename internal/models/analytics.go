package models

import "time"

// DepartmentResourceCount is one department's share of uploaded resources.
type DepartmentResourceCount struct {
	Department string `db:"department" json:"department"`
	Count      int    `db:"count" json:"count"`
}

// TypeResourceCount is one resource type's share of uploads.
type TypeResourceCount struct {
	Type  ResourceType `db:"type" json:"type"`
	Count int          `db:"count" json:"count"`
}

// TopResource ranks a resource by an engagement metric.
type TopResource struct {
	ResourceID string `db:"resource_id" json:"resource_id"`
	Title      string `db:"title" json:"title"`
	Department string `db:"department" json:"department"`
	Metric     int    `db:"metric" json:"metric"`
}

// UploadTrendPoint is one day's upload count.
type UploadTrendPoint struct {
	Day   time.Time `db:"day" json:"day"`
	Count int       `db:"count" json:"count"`
}

// AnalyticsOverview is the admin dashboard snapshot. Sections that fail to
// load are returned empty rather than failing the whole report.
type AnalyticsOverview struct {
	TotalUsers       int                       `json:"total_users"`
	TotalResources   int                       `json:"total_resources"`
	TotalDownloads   int                       `json:"total_downloads"`
	ActiveUsers7d    int                       `json:"active_users_7d"`
	ByDepartment     []DepartmentResourceCount `json:"by_department"`
	ByType           []TypeResourceCount       `json:"by_type"`
	TopByViews       []TopResource             `json:"top_by_views"`
	TopByLikes       []TopResource             `json:"top_by_likes"`
	UploadTrend      []UploadTrendPoint        `json:"upload_trend"`
	Degraded         []string                  `json:"degraded,omitempty"`
	GeneratedAt      time.Time                 `json:"generated_at"`
}

// AnalyticsSystemMetrics is the lightweight runtime snapshot exposed to
// admins next to the Prometheus endpoint.
type AnalyticsSystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
