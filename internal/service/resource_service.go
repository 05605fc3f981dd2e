package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyhive/studyhive-api/internal/gateway"
	"github.com/studyhive/studyhive-api/internal/models"
	appErrors "github.com/studyhive/studyhive-api/pkg/errors"
)

type resourceRepository interface {
	Create(ctx context.Context, res *models.Resource) error
	FindByID(ctx context.Context, id string) (*models.Resource, error)
	List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, int, error)
	Update(ctx context.Context, id string, req models.UpdateResourceRequest) error
	Delete(ctx context.Context, id string) error
	SetLike(ctx context.Context, resourceID, userID string, like bool) (*models.LikeResult, error)
	HasLiked(ctx context.Context, resourceID, userID string) (bool, error)
	RecordView(ctx context.Context, resourceID string) (int, error)
	RecordDownload(ctx context.Context, resourceID string) (int, error)
	AdjustCommentCount(ctx context.Context, resourceID string, delta int) (int, error)
	Stats(ctx context.Context, resourceID string) (*models.ResourceStats, error)
	DailyViews(ctx context.Context, resourceID string, days int) ([]models.DailyViewBucket, error)
}

type activityRecorder interface {
	Record(userID string, action models.ActivityAction, resourceID *string, detail string)
}

type fileStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Delete(filename string) error
}

type downloadSigner interface {
	Generate(resourceID, path string) (string, time.Time, error)
}

type notificationDispatcher interface {
	DispatchNewResource(resourceID string)
}

// ResourceConfig tunes upload handling.
type ResourceConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	DownloadBasePath string
}

// ResourceService owns the resource lifecycle: uploads, metadata, the
// embedded engagement counters and the realtime events they produce.
type ResourceService struct {
	repo       resourceRepository
	store      fileStore
	signer     downloadSigner
	activities activityRecorder
	dispatcher notificationDispatcher
	cache      *CacheService
	validator  *validator.Validate
	logger     *zap.Logger
	config     ResourceConfig
}

// NewResourceService constructs a ResourceService. A nil cache disables
// list caching.
func NewResourceService(repo resourceRepository, store fileStore, signer downloadSigner, activities activityRecorder, dispatcher notificationDispatcher, cache *CacheService, validate *validator.Validate, logger *zap.Logger, config ResourceConfig) *ResourceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.MaxFileSizeBytes <= 0 {
		config.MaxFileSizeBytes = 50 << 20
	}
	return &ResourceService{
		repo:       repo,
		store:      store,
		signer:     signer,
		activities: activities,
		dispatcher: dispatcher,
		cache:      cache,
		validator:  validate,
		logger:     logger,
		config:     config,
	}
}

// Upload holds the file part of a resource upload.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Create validates the payload, stores the file when present, persists
// the resource and queues the notification fan-out.
func (s *ResourceService) Create(ctx context.Context, actor *models.JWTClaims, req models.CreateResourceRequest, upload *Upload) (*models.Resource, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resource payload")
	}
	if req.Type == models.ResourceLink {
		if req.ExternalURL == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "external_url is required for links")
		}
	} else if upload == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a file is required for this resource type")
	}
	if actor.Role == models.RoleStudent {
		if actor.Semester == nil || *req.Semester != *actor.Semester {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only upload to their own semester")
		}
	}

	resource := &models.Resource{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Subject:     req.Subject,
		Department:  req.Department,
		Semester:    *req.Semester,
		ExternalURL: req.ExternalURL,
		UploaderID:  actor.UserID,
		Uploader:    actor.FullName,
		Tags:        req.Tags,
	}

	if upload != nil {
		if upload.Size > s.config.MaxFileSizeBytes {
			return nil, appErrors.Clone(appErrors.ErrFileTooLarge, fmt.Sprintf("file exceeds the %d byte limit", s.config.MaxFileSizeBytes))
		}
		if len(s.config.AllowedMIMEs) > 0 && !s.mimeAllowed(upload.ContentType) {
			return nil, appErrors.Clone(appErrors.ErrUnsupportedFile, fmt.Sprintf("file type %s is not accepted", upload.ContentType))
		}
		storagePath := fmt.Sprintf("resources/%s%s", resource.ID, filepath.Ext(upload.FileName))
		storedPath, err := s.store.SaveStream(storagePath, upload.Reader)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
		}
		resource.FileURL = storedPath
		resource.FileName = upload.FileName
		resource.FileSize = upload.Size
	}

	if err := s.repo.Create(ctx, resource); err != nil {
		if resource.FileURL != "" {
			if cleanupErr := s.store.Delete(resource.FileURL); cleanupErr != nil {
				s.logger.Warn("failed to remove orphaned upload", zap.String("path", resource.FileURL), zap.Error(cleanupErr))
			}
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create resource")
	}

	s.activities.Record(actor.UserID, models.ActivityUpload, &resource.ID, resource.Title)
	s.dispatcher.DispatchNewResource(resource.ID)
	s.invalidateListCache(ctx)

	return resource, nil
}

// Get returns one resource, counting the read as a view.
func (s *ResourceService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.Resource, error) {
	resource, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}

	views, err := s.repo.RecordView(ctx, id)
	if err != nil {
		s.logger.Warn("failed to record view", zap.String("resource_id", id), zap.Error(err))
	} else {
		resource.Stats.Views = views
		s.activities.Record(actor.UserID, models.ActivityView, &resource.ID, "")
		s.emitInteraction(resource.UploaderID, resource.ID, "view", resource.Stats, actor.UserID)
	}
	return resource, nil
}

// resourceListPage is the cached shape of one list response.
type resourceListPage struct {
	Resources  []models.Resource `json:"resources"`
	Pagination models.Pagination `json:"pagination"`
}

// List returns resources matching the filter with pagination metadata.
// Results are cached per filter and invalidated on every write.
func (s *ResourceService) List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, *models.Pagination, error) {
	key := resourceListCacheKey(filter)
	if s.cache.Enabled() {
		var cached resourceListPage
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return cached.Resources, &cached.Pagination, nil
		}
	}

	resources, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list resources")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	pagination := models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, key, resourceListPage{Resources: resources, Pagination: pagination}, 0); err != nil {
			s.logger.Debug("failed to cache resource list", zap.Error(err))
		}
	}
	return resources, &pagination, nil
}

// Update patches resource metadata. Only the uploader or an admin may
// modify a resource.
func (s *ResourceService) Update(ctx context.Context, actor *models.JWTClaims, id string, req models.UpdateResourceRequest) (*models.Resource, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}

	resource, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}
	if resource.UploaderID != actor.UserID && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrNotOwner, "only the uploader may modify this resource")
	}

	if err := s.repo.Update(ctx, id, req); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update resource")
	}
	s.invalidateListCache(ctx)
	return s.repo.FindByID(ctx, id)
}

// Delete removes a resource and its stored file.
func (s *ResourceService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	resource, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}
	if resource.UploaderID != actor.UserID && actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrNotOwner, "only the uploader may delete this resource")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete resource")
	}

	if resource.FileURL != "" {
		if err := s.store.Delete(resource.FileURL); err != nil {
			s.logger.Warn("failed to remove stored file", zap.String("path", resource.FileURL), zap.Error(err))
		}
	}
	s.invalidateListCache(ctx)
	return nil
}

// SetLike drives the caller's like to the requested end state. Repeating
// the same state is a no-op: nothing is recorded and nothing is emitted.
func (s *ResourceService) SetLike(ctx context.Context, actor *models.JWTClaims, id string, like bool) (*models.LikeResult, error) {
	resource, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}

	result, err := s.repo.SetLike(ctx, id, actor.UserID, like)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set like")
	}
	if !result.Changed {
		return result, nil
	}

	action := models.ActivityLike
	kind := "like"
	if !result.Liked {
		action = models.ActivityUnlike
		kind = "unlike"
	}
	s.activities.Record(actor.UserID, action, &result.ResourceID, "")

	if stats, err := s.repo.Stats(ctx, id); err == nil {
		s.emitInteraction(resource.UploaderID, id, kind, *stats, actor.UserID)
	}
	return result, nil
}

// IncrementStat bumps one engagement counter through the same atomic
// paths the dedicated endpoints use and returns the fresh totals.
func (s *ResourceService) IncrementStat(ctx context.Context, actor *models.JWTClaims, req models.StatIncrementRequest) (*models.ResourceStats, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid stat payload")
	}

	var err error
	switch req.Action {
	case "view":
		_, err = s.repo.RecordView(ctx, req.ResourceID)
	case "download":
		_, err = s.repo.RecordDownload(ctx, req.ResourceID)
	case "comment":
		_, err = s.repo.AdjustCommentCount(ctx, req.ResourceID, 1)
	case "like":
		_, err = s.repo.SetLike(ctx, req.ResourceID, actor.UserID, true)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to increment stat")
	}

	stats, err := s.repo.Stats(ctx, req.ResourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load stats")
	}
	return stats, nil
}

// Download records the download and returns a signed, expiring link.
func (s *ResourceService) Download(ctx context.Context, actor *models.JWTClaims, id string) (*models.DownloadTicket, error) {
	resource, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}
	if resource.FileURL == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "resource has no downloadable file")
	}

	token, expiresAt, err := s.signer.Generate(resource.ID, resource.FileURL)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}

	if _, err := s.repo.RecordDownload(ctx, id); err != nil {
		s.logger.Warn("failed to record download", zap.String("resource_id", id), zap.Error(err))
	} else {
		s.activities.Record(actor.UserID, models.ActivityDownload, &resource.ID, resource.FileName)
		if stats, err := s.repo.Stats(ctx, id); err == nil {
			s.emitInteraction(resource.UploaderID, id, "download", *stats, actor.UserID)
		}
	}

	url := strings.TrimSuffix(s.config.DownloadBasePath, "/") + "/" + token
	return &models.DownloadTicket{URL: url, ExpiresAt: expiresAt}, nil
}

// Stats returns the counters plus the recent daily view series.
func (s *ResourceService) Stats(ctx context.Context, id string, days int) (*models.ResourceStatsReport, error) {
	stats, err := s.repo.Stats(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load stats")
	}
	buckets, err := s.repo.DailyViews(ctx, id, days)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load daily views")
	}
	return &models.ResourceStatsReport{ResourceID: id, Stats: *stats, DailyViews: buckets}, nil
}

// HasLiked reports whether the user currently likes the resource.
func (s *ResourceService) HasLiked(ctx context.Context, userID, resourceID string) (bool, error) {
	liked, err := s.repo.HasLiked(ctx, resourceID, userID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check like state")
	}
	return liked, nil
}

// emitInteraction pushes counter updates to the uploader's personal room
// so owners see engagement on their material as it happens.
func (s *ResourceService) emitInteraction(ownerID, resourceID, kind string, stats models.ResourceStats, actorID string) {
	gateway.EmitResourceInteraction(gateway.UserRoom(ownerID), models.ResourceInteractionEvent{
		ResourceID: resourceID,
		Kind:       kind,
		Stats:      stats,
		ActorID:    actorID,
	})
}

func (s *ResourceService) invalidateListCache(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "resources:list:*"); err != nil {
		s.logger.Warn("failed to invalidate resource list cache", zap.Error(err))
	}
}

func resourceListCacheKey(f models.ResourceFilter) string {
	typ := "any"
	if f.Type != nil {
		typ = string(*f.Type)
	}
	semester := "any"
	if f.Semester != nil {
		semester = strconv.Itoa(*f.Semester)
	}
	return fmt.Sprintf("resources:list:%s:%s:%s:%s:%s:%s:%d:%d:%s:%s",
		typ, f.Department, semester, f.Subject, f.UploaderID, f.Search,
		f.Page, f.PageSize, f.SortBy, f.SortOrder)
}

func (s *ResourceService) mimeAllowed(contentType string) bool {
	for _, allowed := range s.config.AllowedMIMEs {
		if strings.EqualFold(allowed, contentType) {
			return true
		}
	}
	return false
}
