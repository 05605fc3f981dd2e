package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyhive/studyhive-api/internal/gateway"
	"github.com/studyhive/studyhive-api/internal/models"
	appErrors "github.com/studyhive/studyhive-api/pkg/errors"
	"github.com/studyhive/studyhive-api/pkg/jobs"
)

type notificationRepository interface {
	BulkCreate(ctx context.Context, notifications []models.Notification) error
	ListByUser(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
}

type notificationUserRepository interface {
	ListStudentIDs(ctx context.Context, semester int) ([]string, error)
}

type notificationResourceRepository interface {
	FindByID(ctx context.Context, id string) (*models.Resource, error)
}

// JobTypeNewResource tags fan-out jobs on the dispatch queue.
const JobTypeNewResource = "notification.new_resource"

// NewResourcePayload is the queue payload for a new resource fan-out.
// The optional fields override what the resource row carries, so faculty
// can retarget or relabel an announcement without editing the resource.
type NewResourcePayload struct {
	ResourceID   string
	UploaderName string
	Title        string
	Semester     *int
}

// ResourceUploadedRequest is the HTTP trigger for a manual announcement
// of an already uploaded resource.
type ResourceUploadedRequest struct {
	ResourceID   string `json:"resource_id" validate:"required,uuid"`
	UploaderName string `json:"uploader_name" validate:"omitempty,max=100"`
	Title        string `json:"title" validate:"omitempty,max=200"`
	Semester     *int   `json:"semester" validate:"omitempty,min=0,max=8"`
}

// NotificationService dispatches notifications for newly uploaded
// resources and serves each user's notification feed.
//
// Fan-out is best effort on both legs: a failed database insert does not
// stop the socket emit and a dead socket never blocks the insert. Users
// who are offline catch up from the stored rows on next load.
type NotificationService struct {
	repo      notificationRepository
	users     notificationUserRepository
	resources notificationResourceRepository
	validator *validator.Validate
	logger    *zap.Logger

	queue *jobs.Queue
}

// NewNotificationService constructs a NotificationService. Call Start to
// bring up the dispatch queue before enqueuing fan-outs.
func NewNotificationService(repo notificationRepository, users notificationUserRepository, resources notificationResourceRepository, validate *validator.Validate, logger *zap.Logger, queueCfg jobs.QueueConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	s := &NotificationService{
		repo:      repo,
		users:     users,
		resources: resources,
		validator: validate,
		logger:    logger,
	}
	if queueCfg.Logger == nil {
		queueCfg.Logger = logger
	}
	s.queue = jobs.NewQueue("notifications", s.handleJob, queueCfg)
	return s
}

// Start brings up the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the dispatch workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// DispatchNewResource queues a fan-out for the given resource. The HTTP
// upload path returns immediately; workers do the cohort writes.
func (s *NotificationService) DispatchNewResource(resourceID string) {
	s.enqueueFanOut(NewResourcePayload{ResourceID: resourceID})
}

// DispatchResourceUploaded queues a fan-out from the manual announcement
// endpoint, carrying the caller's overrides into the job.
func (s *NotificationService) DispatchResourceUploaded(req ResourceUploadedRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}
	s.enqueueFanOut(NewResourcePayload{
		ResourceID:   req.ResourceID,
		UploaderName: req.UploaderName,
		Title:        req.Title,
		Semester:     req.Semester,
	})
	return nil
}

func (s *NotificationService) enqueueFanOut(payload NewResourcePayload) {
	if err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    JobTypeNewResource,
		Payload: payload,
	}); err != nil {
		s.logger.Warn("failed to enqueue notification fan-out",
			zap.String("resource_id", payload.ResourceID),
			zap.Error(err),
		)
	}
}

func (s *NotificationService) handleJob(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case JobTypeNewResource:
		payload, ok := job.Payload.(NewResourcePayload)
		if !ok {
			s.logger.Error("unexpected payload type on notification queue", zap.String("job_id", job.ID))
			return nil
		}
		return s.fanOutNewResource(ctx, payload)
	default:
		s.logger.Error("unknown job type on notification queue", zap.String("type", job.Type))
		return nil
	}
}

// fanOutNewResource resolves the target cohort and performs the dual
// write. A missing or malformed resource id aborts quietly: the upload
// already succeeded and there is nobody sensible to notify.
func (s *NotificationService) fanOutNewResource(ctx context.Context, payload NewResourcePayload) error {
	if _, err := uuid.Parse(payload.ResourceID); err != nil {
		s.logger.Warn("skipping fan-out for malformed resource id", zap.String("resource_id", payload.ResourceID))
		return nil
	}

	resource, err := s.resources.FindByID(ctx, payload.ResourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("skipping fan-out for missing resource", zap.String("resource_id", payload.ResourceID))
			return nil
		}
		return fmt.Errorf("load resource for fan-out: %w", err)
	}

	semester := resource.Semester
	if payload.Semester != nil {
		semester = *payload.Semester
	}
	title := resource.Title
	if payload.Title != "" {
		title = payload.Title
	}
	uploader := resource.Uploader
	if payload.UploaderName != "" {
		uploader = payload.UploaderName
	}

	studentIDs, err := s.users.ListStudentIDs(ctx, semester)
	if err != nil {
		return fmt.Errorf("resolve fan-out cohort: %w", err)
	}

	message := fmt.Sprintf("%s shared %q in %s", uploader, title, resource.Subject)
	notifications := make([]models.Notification, 0, len(studentIDs))
	for _, studentID := range studentIDs {
		if studentID == resource.UploaderID {
			continue
		}
		notifications = append(notifications, models.Notification{
			UserID:     studentID,
			Type:       models.NotificationNewResource,
			Title:      "New resource available",
			Message:    message,
			ResourceID: &resource.ID,
		})
	}

	if err := s.repo.BulkCreate(ctx, notifications); err != nil {
		s.logger.Error("failed to persist notification fan-out",
			zap.String("resource_id", resource.ID),
			zap.Int("recipients", len(notifications)),
			zap.Error(err),
		)
	}

	// Placement material concerns every student, so it skips room
	// targeting and goes to every open connection.
	event := models.NewResourceEvent{Resource: resource, Notification: message}
	if semester == models.PlacementSemester {
		gateway.EmitNewResourceToAll(event)
	} else {
		gateway.EmitNewResource(gateway.SemesterRoom(semester), event)
	}

	for i := range notifications {
		gateway.EmitNotification(notifications[i].UserID, notifications[i])
	}

	s.logger.Info("notification fan-out complete",
		zap.String("resource_id", resource.ID),
		zap.Int("semester", semester),
		zap.Int("recipients", len(notifications)),
	)
	return nil
}

// List returns one user's notifications with pagination metadata.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	if filter.UserID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "user id is required")
	}
	notifications, total, err := s.repo.ListByUser(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return notifications, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// UnreadCount returns the user's unread badge count.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}

// MarkRead marks one notification as read for its owner.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// MarkAllRead marks every unread notification as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.repo.MarkAllRead(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return nil
}
