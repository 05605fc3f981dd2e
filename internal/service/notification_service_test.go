package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studyhive/studyhive-api/internal/gateway"
	"github.com/studyhive/studyhive-api/internal/models"
	"github.com/studyhive/studyhive-api/pkg/jobs"
)

func TestMain(m *testing.M) {
	gateway.Init(gateway.NewHub(zap.NewNop()))
	m.Run()
}

type mockNotificationRepo struct {
	created       []models.Notification
	bulkCreateErr error
	unread        int
	markedRead    []string
	markedAll     []string
}

func (m *mockNotificationRepo) BulkCreate(ctx context.Context, notifications []models.Notification) error {
	if m.bulkCreateErr != nil {
		return m.bulkCreateErr
	}
	m.created = append(m.created, notifications...)
	return nil
}

func (m *mockNotificationRepo) ListByUser(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	out := make([]models.Notification, 0, len(m.created))
	for _, n := range m.created {
		if n.UserID == filter.UserID {
			out = append(out, n)
		}
	}
	return out, len(out), nil
}

func (m *mockNotificationRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	return m.unread, nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id, userID string) error {
	m.markedRead = append(m.markedRead, id)
	return nil
}

func (m *mockNotificationRepo) MarkAllRead(ctx context.Context, userID string) error {
	m.markedAll = append(m.markedAll, userID)
	return nil
}

type mockCohortRepo struct {
	bySemester  map[int][]string
	lastQueried int
	err         error
}

func (m *mockCohortRepo) ListStudentIDs(ctx context.Context, semester int) ([]string, error) {
	m.lastQueried = semester
	if m.err != nil {
		return nil, m.err
	}
	return m.bySemester[semester], nil
}

type mockResourceLookup struct {
	resources map[string]*models.Resource
}

func (m *mockResourceLookup) FindByID(ctx context.Context, id string) (*models.Resource, error) {
	if r, ok := m.resources[id]; ok {
		copy := *r
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func notificationTestService(repo *mockNotificationRepo, users *mockCohortRepo, resources *mockResourceLookup) *NotificationService {
	return NewNotificationService(repo, users, resources, validator.New(), zap.NewNop(), jobs.QueueConfig{})
}

func cohortResource(id string, semester int) *models.Resource {
	return &models.Resource{
		ID:         id,
		Title:      "Graph Algorithms Notes",
		Type:       models.ResourceNote,
		Department: "CSE",
		Semester:   semester,
		Subject:    "Algorithms",
		UploaderID: "faculty-1",
		Uploader:   "Dr. Rao",
	}
}

func TestFanOutTargetsSingleSemester(t *testing.T) {
	resourceID := uuid.NewString()
	repo := &mockNotificationRepo{}
	users := &mockCohortRepo{bySemester: map[int][]string{4: {"s1", "s2", "s3"}}}
	resources := &mockResourceLookup{resources: map[string]*models.Resource{resourceID: cohortResource(resourceID, 4)}}
	svc := notificationTestService(repo, users, resources)

	err := svc.fanOutNewResource(context.Background(), NewResourcePayload{ResourceID: resourceID})
	require.NoError(t, err)

	assert.Equal(t, 4, users.lastQueried)
	require.Len(t, repo.created, 3)
	for _, n := range repo.created {
		assert.Equal(t, models.NotificationNewResource, n.Type)
		require.NotNil(t, n.ResourceID)
		assert.Equal(t, resourceID, *n.ResourceID)
		assert.Contains(t, n.Message, "Dr. Rao")
	}
}

func TestFanOutPlacementReachesAllStudents(t *testing.T) {
	resourceID := uuid.NewString()
	repo := &mockNotificationRepo{}
	users := &mockCohortRepo{bySemester: map[int][]string{models.PlacementSemester: {"s1", "s2", "s3", "s4", "s5"}}}
	resources := &mockResourceLookup{resources: map[string]*models.Resource{resourceID: cohortResource(resourceID, models.PlacementSemester)}}
	svc := notificationTestService(repo, users, resources)

	err := svc.fanOutNewResource(context.Background(), NewResourcePayload{ResourceID: resourceID})
	require.NoError(t, err)

	assert.Equal(t, models.PlacementSemester, users.lastQueried)
	assert.Len(t, repo.created, 5)
}

func TestFanOutSemesterOverrideRetargetsCohort(t *testing.T) {
	resourceID := uuid.NewString()
	repo := &mockNotificationRepo{}
	users := &mockCohortRepo{bySemester: map[int][]string{2: {"s1", "s2"}, 5: {"s9"}}}
	resources := &mockResourceLookup{resources: map[string]*models.Resource{resourceID: cohortResource(resourceID, 5)}}
	svc := notificationTestService(repo, users, resources)

	target := 2
	err := svc.fanOutNewResource(context.Background(), NewResourcePayload{ResourceID: resourceID, Semester: &target})
	require.NoError(t, err)

	assert.Equal(t, 2, users.lastQueried)
	assert.Len(t, repo.created, 2)
}

func TestFanOutNameAndTitleOverridesShapeMessage(t *testing.T) {
	resourceID := uuid.NewString()
	repo := &mockNotificationRepo{}
	users := &mockCohortRepo{bySemester: map[int][]string{4: {"s1"}}}
	resources := &mockResourceLookup{resources: map[string]*models.Resource{resourceID: cohortResource(resourceID, 4)}}
	svc := notificationTestService(repo, users, resources)

	err := svc.fanOutNewResource(context.Background(), NewResourcePayload{
		ResourceID:   resourceID,
		UploaderName: "Placement Cell",
		Title:        "Aptitude Primer",
	})
	require.NoError(t, err)

	require.Len(t, repo.created, 1)
	assert.Contains(t, repo.created[0].Message, "Placement Cell")
	assert.Contains(t, repo.created[0].Message, "Aptitude Primer")
	assert.NotContains(t, repo.created[0].Message, "Dr. Rao")
}

func TestDispatchResourceUploadedRejectsBadPayload(t *testing.T) {
	svc := notificationTestService(&mockNotificationRepo{}, &mockCohortRepo{}, &mockResourceLookup{})

	err := svc.DispatchResourceUploaded(ResourceUploadedRequest{ResourceID: "not-a-uuid"})
	require.Error(t, err)

	badSemester := 12
	err = svc.DispatchResourceUploaded(ResourceUploadedRequest{ResourceID: uuid.NewString(), Semester: &badSemester})
	require.Error(t, err)
}

func TestFanOutSkipsUploader(t *testing.T) {
	resourceID := uuid.NewString()
	repo := &mockNotificationRepo{}
	users := &mockCohortRepo{bySemester: map[int][]string{2: {"s1", "faculty-1", "s2"}}}
	resources := &mockResourceLookup{resources: map[string]*models.Resource{resourceID: cohortResource(resourceID, 2)}}
	svc := notificationTestService(repo, users, resources)

	err := svc.fanOutNewResource(context.Background(), NewResourcePayload{ResourceID: resourceID})
	require.NoError(t, err)

	require.Len(t, repo.created, 2)
	for _, n := range repo.created {
		assert.NotEqual(t, "faculty-1", n.UserID)
	}
}

func TestFanOutMalformedResourceIDAbortsQuietly(t *testing.T) {
	repo := &mockNotificationRepo{}
	users := &mockCohortRepo{bySemester: map[int][]string{}}
	resources := &mockResourceLookup{resources: map[string]*models.Resource{}}
	svc := notificationTestService(repo, users, resources)

	err := svc.fanOutNewResource(context.Background(), NewResourcePayload{ResourceID: "not-a-uuid"})
	require.NoError(t, err)
	assert.Empty(t, repo.created)
}

func TestFanOutMissingResourceAbortsQuietly(t *testing.T) {
	repo := &mockNotificationRepo{}
	users := &mockCohortRepo{bySemester: map[int][]string{}}
	resources := &mockResourceLookup{resources: map[string]*models.Resource{}}
	svc := notificationTestService(repo, users, resources)

	err := svc.fanOutNewResource(context.Background(), NewResourcePayload{ResourceID: uuid.NewString()})
	require.NoError(t, err)
	assert.Empty(t, repo.created)
}

func TestFanOutCohortErrorReturnsForRetry(t *testing.T) {
	resourceID := uuid.NewString()
	repo := &mockNotificationRepo{}
	users := &mockCohortRepo{err: errors.New("db down")}
	resources := &mockResourceLookup{resources: map[string]*models.Resource{resourceID: cohortResource(resourceID, 3)}}
	svc := notificationTestService(repo, users, resources)

	err := svc.fanOutNewResource(context.Background(), NewResourcePayload{ResourceID: resourceID})
	require.Error(t, err)
}

func TestFanOutInsertFailureStillCompletes(t *testing.T) {
	resourceID := uuid.NewString()
	repo := &mockNotificationRepo{bulkCreateErr: errors.New("insert failed")}
	users := &mockCohortRepo{bySemester: map[int][]string{1: {"s1"}}}
	resources := &mockResourceLookup{resources: map[string]*models.Resource{resourceID: cohortResource(resourceID, 1)}}
	svc := notificationTestService(repo, users, resources)

	err := svc.fanOutNewResource(context.Background(), NewResourcePayload{ResourceID: resourceID})
	require.NoError(t, err)
	assert.Empty(t, repo.created)
}

func TestListNotificationsRequiresUser(t *testing.T) {
	svc := notificationTestService(&mockNotificationRepo{}, &mockCohortRepo{}, &mockResourceLookup{})
	_, _, err := svc.List(context.Background(), models.NotificationFilter{})
	require.Error(t, err)
}

func TestListNotificationsDefaultsPagination(t *testing.T) {
	repo := &mockNotificationRepo{created: []models.Notification{{ID: "n1", UserID: "u1"}}}
	svc := notificationTestService(repo, &mockCohortRepo{}, &mockResourceLookup{})

	items, page, err := svc.List(context.Background(), models.NotificationFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
}
