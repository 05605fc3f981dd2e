package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/studyhive/studyhive-api/internal/models"
)

const resourceColumns = `r.id, r.title, r.description, r.type, r.subject, r.department, r.semester, r.file_url, r.file_name, r.file_size, r.external_url, r.uploader_id, u.full_name AS uploader_name, r.tags, r.views, r.likes, r.comments, r.downloads, r.created_at, r.updated_at`

// ResourceRepository provides database access for shared resources and
// their embedded engagement counters.
type ResourceRepository struct {
	db *sqlx.DB
}

// NewResourceRepository creates a new instance of ResourceRepository.
func NewResourceRepository(db *sqlx.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

type resourceRow struct {
	ID          string              `db:"id"`
	Title       string              `db:"title"`
	Description string              `db:"description"`
	Type        models.ResourceType `db:"type"`
	Subject     string              `db:"subject"`
	Department  string              `db:"department"`
	Semester    int                 `db:"semester"`
	FileURL     string              `db:"file_url"`
	FileName    string              `db:"file_name"`
	FileSize    int64               `db:"file_size"`
	ExternalURL string              `db:"external_url"`
	UploaderID  string              `db:"uploader_id"`
	Uploader    string              `db:"uploader_name"`
	Tags        string              `db:"tags"`
	Views       int                 `db:"views"`
	Likes       int                 `db:"likes"`
	Comments    int                 `db:"comments"`
	Downloads   int                 `db:"downloads"`
	CreatedAt   time.Time           `db:"created_at"`
	UpdatedAt   time.Time           `db:"updated_at"`
}

func (row resourceRow) toModel() models.Resource {
	return models.Resource{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Type:        row.Type,
		Subject:     row.Subject,
		Department:  row.Department,
		Semester:    row.Semester,
		FileURL:     row.FileURL,
		FileName:    row.FileName,
		FileSize:    row.FileSize,
		ExternalURL: row.ExternalURL,
		UploaderID:  row.UploaderID,
		Uploader:    row.Uploader,
		Tags:        row.Tags,
		Stats: models.ResourceStats{
			Views:     row.Views,
			Likes:     row.Likes,
			Comments:  row.Comments,
			Downloads: row.Downloads,
		},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

// Create inserts a new resource with zeroed counters.
func (r *ResourceRepository) Create(ctx context.Context, res *models.Resource) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = now

	const query = `INSERT INTO resources (id, title, description, type, subject, department, semester, file_url, file_name, file_size, external_url, uploader_id, tags, views, likes, comments, downloads, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 0, 0, 0, 0, $14, $15)`
	if _, err := r.db.ExecContext(ctx, query,
		res.ID, res.Title, res.Description, res.Type, res.Subject, res.Department, res.Semester,
		res.FileURL, res.FileName, res.FileSize, res.ExternalURL, res.UploaderID, res.Tags,
		res.CreatedAt, res.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create resource: %w", err)
	}
	return nil
}

// FindByID returns one resource joined with its uploader name.
func (r *ResourceRepository) FindByID(ctx context.Context, id string) (*models.Resource, error) {
	query := fmt.Sprintf(`SELECT %s FROM resources r JOIN users u ON u.id = r.uploader_id WHERE r.id = $1 LIMIT 1`, resourceColumns)
	var row resourceRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find resource by id: %w", err)
	}
	res := row.toModel()
	return &res, nil
}

// List returns resources based on filters with total count.
func (r *ResourceRepository) List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, int, error) {
	baseQuery := `FROM resources r JOIN users u ON u.id = r.uploader_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("r.type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("r.department = $%d", len(args)+1))
		args = append(args, filter.Department)
	}
	if filter.Semester != nil {
		conditions = append(conditions, fmt.Sprintf("r.semester = $%d", len(args)+1))
		args = append(args, *filter.Semester)
	}
	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("r.subject = $%d", len(args)+1))
		args = append(args, filter.Subject)
	}
	if filter.UploaderID != "" {
		conditions = append(conditions, fmt.Sprintf("r.uploader_id = $%d", len(args)+1))
		args = append(args, filter.UploaderID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(r.title) LIKE $%d OR LOWER(r.description) LIKE $%d OR LOWER(r.tags) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"created_at": "r.created_at",
		"title":      "r.title",
		"views":      "r.views",
		"likes":      "r.likes",
		"downloads":  "r.downloads",
	}
	sortCol, ok := allowedSorts[sortBy]
	if !ok {
		sortCol = "r.created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", resourceColumns, baseQuery, sortCol, sortOrder, pageSize, offset)

	var rows []resourceRow
	if err := r.db.SelectContext(ctx, &rows, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list resources: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count resources: %w", err)
	}

	resources := make([]models.Resource, 0, len(rows))
	for _, row := range rows {
		resources = append(resources, row.toModel())
	}
	return resources, total, nil
}

// Update updates mutable metadata fields of a resource.
func (r *ResourceRepository) Update(ctx context.Context, id string, req models.UpdateResourceRequest) error {
	var sets []string
	var args []interface{}

	if req.Title != nil {
		sets = append(sets, fmt.Sprintf("title = $%d", len(args)+1))
		args = append(args, *req.Title)
	}
	if req.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", len(args)+1))
		args = append(args, *req.Description)
	}
	if req.Subject != nil {
		sets = append(sets, fmt.Sprintf("subject = $%d", len(args)+1))
		args = append(args, *req.Subject)
	}
	if req.Tags != nil {
		sets = append(sets, fmt.Sprintf("tags = $%d", len(args)+1))
		args = append(args, *req.Tags)
	}
	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)+1))
	args = append(args, time.Now().UTC())
	args = append(args, id)

	query := fmt.Sprintf("UPDATE resources SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update resource: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a resource. Likes, comments and daily views cascade at
// the schema level.
func (r *ResourceRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM resources WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetLike drives the caller's like row to the requested end state and
// adjusts the embedded counter in the same statement so concurrent writes
// cannot drift. Setting the state the row is already in changes nothing,
// and the counter is clamped at zero on the way down.
func (r *ResourceRepository) SetLike(ctx context.Context, resourceID, userID string, like bool) (*models.LikeResult, error) {
	now := time.Now().UTC()

	if like {
		const insertQuery = `
			WITH ins AS (
				INSERT INTO resource_likes (resource_id, user_id, created_at)
				VALUES ($1, $2, $3)
				ON CONFLICT (resource_id, user_id) DO NOTHING
				RETURNING 1
			)
			UPDATE resources SET likes = likes + (SELECT COUNT(*) FROM ins), updated_at = $3
			WHERE id = $1
			RETURNING likes, (SELECT COUNT(*) FROM ins) AS inserted`

		var res struct {
			Likes    int `db:"likes"`
			Inserted int `db:"inserted"`
		}
		if err := r.db.GetContext(ctx, &res, insertQuery, resourceID, userID, now); err != nil {
			if err == sql.ErrNoRows {
				return nil, err
			}
			return nil, fmt.Errorf("set like: %w", err)
		}
		return &models.LikeResult{ResourceID: resourceID, Liked: true, Likes: res.Likes, Changed: res.Inserted > 0}, nil
	}

	const deleteQuery = `
		WITH del AS (
			DELETE FROM resource_likes WHERE resource_id = $1 AND user_id = $2
			RETURNING 1
		)
		UPDATE resources SET likes = GREATEST(likes - (SELECT COUNT(*) FROM del), 0), updated_at = $3
		WHERE id = $1
		RETURNING likes, (SELECT COUNT(*) FROM del) AS removed`

	var res struct {
		Likes   int `db:"likes"`
		Removed int `db:"removed"`
	}
	if err := r.db.GetContext(ctx, &res, deleteQuery, resourceID, userID, now); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("remove like: %w", err)
	}
	return &models.LikeResult{ResourceID: resourceID, Liked: false, Likes: res.Likes, Changed: res.Removed > 0}, nil
}

// HasLiked reports whether the user currently likes the resource.
func (r *ResourceRepository) HasLiked(ctx context.Context, resourceID, userID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM resource_likes WHERE resource_id = $1 AND user_id = $2)`
	var liked bool
	if err := r.db.GetContext(ctx, &liked, query, resourceID, userID); err != nil {
		return false, fmt.Errorf("check like: %w", err)
	}
	return liked, nil
}

// RecordView bumps the total view counter and upserts today's bucket.
func (r *ResourceRepository) RecordView(ctx context.Context, resourceID string) (int, error) {
	now := time.Now().UTC()
	const totalQuery = `UPDATE resources SET views = views + 1, updated_at = $2 WHERE id = $1 RETURNING views`
	var views int
	if err := r.db.GetContext(ctx, &views, totalQuery, resourceID, now); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("record view: %w", err)
	}

	day := now.Truncate(24 * time.Hour)
	const bucketQuery = `INSERT INTO resource_daily_views (resource_id, day, views) VALUES ($1, $2, 1) ON CONFLICT (resource_id, day) DO UPDATE SET views = resource_daily_views.views + 1`
	if _, err := r.db.ExecContext(ctx, bucketQuery, resourceID, day); err != nil {
		return views, fmt.Errorf("record daily view: %w", err)
	}
	return views, nil
}

// RecordDownload bumps the download counter.
func (r *ResourceRepository) RecordDownload(ctx context.Context, resourceID string) (int, error) {
	const query = `UPDATE resources SET downloads = downloads + 1, updated_at = $2 WHERE id = $1 RETURNING downloads`
	var downloads int
	if err := r.db.GetContext(ctx, &downloads, query, resourceID, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("record download: %w", err)
	}
	return downloads, nil
}

// AdjustCommentCount moves the comment counter by delta, clamped at zero.
func (r *ResourceRepository) AdjustCommentCount(ctx context.Context, resourceID string, delta int) (int, error) {
	const query = `UPDATE resources SET comments = GREATEST(comments + $2, 0), updated_at = $3 WHERE id = $1 RETURNING comments`
	var comments int
	if err := r.db.GetContext(ctx, &comments, query, resourceID, delta, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("adjust comment count: %w", err)
	}
	return comments, nil
}

// Stats returns the embedded counters for one resource.
func (r *ResourceRepository) Stats(ctx context.Context, resourceID string) (*models.ResourceStats, error) {
	const query = `SELECT views, likes, comments, downloads FROM resources WHERE id = $1 LIMIT 1`
	var stats models.ResourceStats
	if err := r.db.GetContext(ctx, &stats, query, resourceID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("resource stats: %w", err)
	}
	return &stats, nil
}

// DailyViews returns the view buckets for the last `days` days, oldest first.
func (r *ResourceRepository) DailyViews(ctx context.Context, resourceID string, days int) ([]models.DailyViewBucket, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -days+1)
	const query = `SELECT resource_id, day, views FROM resource_daily_views WHERE resource_id = $1 AND day >= $2 ORDER BY day ASC`
	var buckets []models.DailyViewBucket
	if err := r.db.SelectContext(ctx, &buckets, query, resourceID, since); err != nil {
		return nil, fmt.Errorf("daily views: %w", err)
	}
	return buckets, nil
}
