package models

import "time"

// ResourceType enumerates the kinds of shared material.
type ResourceType string

const (
	ResourceDocument ResourceType = "DOCUMENT"
	ResourceVideo    ResourceType = "VIDEO"
	ResourceNote     ResourceType = "NOTE"
	ResourceLink     ResourceType = "LINK"
)

// PlacementSemester is the reserved semester value on resources that marks
// placement material targeted at every student regardless of semester.
const PlacementSemester = 0

// ResourceStats carries the embedded counters maintained alongside each
// resource row. Totals never go negative.
type ResourceStats struct {
	Views     int `db:"views" json:"views"`
	Likes     int `db:"likes" json:"likes"`
	Comments  int `db:"comments" json:"comments"`
	Downloads int `db:"downloads" json:"downloads"`
}

// Resource represents a shared study resource.
type Resource struct {
	ID          string       `db:"id" json:"id"`
	Title       string       `db:"title" json:"title"`
	Description string       `db:"description" json:"description"`
	Type        ResourceType `db:"type" json:"type"`
	Subject     string       `db:"subject" json:"subject"`
	Department  string       `db:"department" json:"department"`
	Semester    int          `db:"semester" json:"semester"`
	FileURL     string       `db:"file_url" json:"file_url,omitempty"`
	FileName    string       `db:"file_name" json:"file_name,omitempty"`
	FileSize    int64        `db:"file_size" json:"file_size,omitempty"`
	ExternalURL string       `db:"external_url" json:"external_url,omitempty"`
	UploaderID  string       `db:"uploader_id" json:"uploader_id"`
	Uploader    string       `db:"uploader_name" json:"uploader_name,omitempty"`
	Tags        string       `db:"tags" json:"tags,omitempty"`
	Stats       ResourceStats `json:"stats"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// ResourceFilter captures list filtering for resources.
type ResourceFilter struct {
	Type       *ResourceType
	Department string
	Semester   *int
	Subject    string
	UploaderID string
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// CreateResourceRequest is the payload for uploading a new resource. File
// metadata comes from the multipart part, not the JSON body.
type CreateResourceRequest struct {
	Title       string       `json:"title" validate:"required,min=3,max=200"`
	Description string       `json:"description" validate:"max=2000"`
	Type        ResourceType `json:"type" validate:"required,oneof=DOCUMENT VIDEO NOTE LINK"`
	Subject     string       `json:"subject" validate:"required"`
	Department  string       `json:"department" validate:"required"`
	Semester    *int         `json:"semester" validate:"required,min=0,max=8"`
	ExternalURL string       `json:"external_url" validate:"omitempty,url"`
	Tags        string       `json:"tags"`
}

// UpdateResourceRequest is a partial update of resource metadata.
type UpdateResourceRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=3,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Subject     *string `json:"subject"`
	Tags        *string `json:"tags"`
}

// LikeRequest carries the desired end state of a like. Sending the state
// the resource is already in is a no-op, so retries are safe.
type LikeRequest struct {
	Like *bool `json:"like" binding:"required"`
}

// LikeResult reports the state of a like after a set.
type LikeResult struct {
	ResourceID string `json:"resource_id"`
	Liked      bool   `json:"liked"`
	Likes      int    `json:"likes"`
	Changed    bool   `json:"-"`
}

// StatIncrementRequest bumps one engagement counter on a resource.
type StatIncrementRequest struct {
	ResourceID string `json:"resource_id" validate:"required"`
	Action     string `json:"action" validate:"required,oneof=view download like comment"`
}

// DailyViewBucket is one day's view count for a resource.
type DailyViewBucket struct {
	ResourceID string    `db:"resource_id" json:"resource_id"`
	Day        time.Time `db:"day" json:"day"`
	Views      int       `db:"views" json:"views"`
}

// ResourceStatsReport combines totals with the recent daily view series.
type ResourceStatsReport struct {
	ResourceID string            `json:"resource_id"`
	Stats      ResourceStats     `json:"stats"`
	DailyViews []DailyViewBucket `json:"daily_views"`
}

// DownloadTicket is a signed, expiring link for fetching a resource file.
type DownloadTicket struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
