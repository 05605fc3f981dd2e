package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studyhive/studyhive-api/internal/models"
	appErrors "github.com/studyhive/studyhive-api/pkg/errors"
)

type mockCommentRepo struct {
	comments map[string]*models.Comment
	nextID   int
}

func newMockCommentRepo() *mockCommentRepo {
	return &mockCommentRepo{comments: make(map[string]*models.Comment)}
}

func (m *mockCommentRepo) Create(ctx context.Context, comment *models.Comment) error {
	m.nextID++
	comment.ID = fmt.Sprintf("c%d", m.nextID)
	copy := *comment
	m.comments[comment.ID] = &copy
	return nil
}

func (m *mockCommentRepo) FindByID(ctx context.Context, id string) (*models.Comment, error) {
	if c, ok := m.comments[id]; ok {
		copy := *c
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCommentRepo) ListByResource(ctx context.Context, filter models.CommentFilter) ([]models.Comment, int, error) {
	out := make([]models.Comment, 0, len(m.comments))
	for _, c := range m.comments {
		if c.ResourceID == filter.ResourceID {
			out = append(out, *c)
		}
	}
	return out, len(out), nil
}

func (m *mockCommentRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.comments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.comments, id)
	return nil
}

type mockCommentResources struct {
	resources map[string]*models.Resource
}

func (m *mockCommentResources) FindByID(ctx context.Context, id string) (*models.Resource, error) {
	if r, ok := m.resources[id]; ok {
		copy := *r
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCommentResources) AdjustCommentCount(ctx context.Context, resourceID string, delta int) (int, error) {
	r, ok := m.resources[resourceID]
	if !ok {
		return 0, sql.ErrNoRows
	}
	r.Stats.Comments += delta
	if r.Stats.Comments < 0 {
		r.Stats.Comments = 0
	}
	return r.Stats.Comments, nil
}

func (m *mockCommentResources) Stats(ctx context.Context, resourceID string) (*models.ResourceStats, error) {
	r, ok := m.resources[resourceID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	stats := r.Stats
	return &stats, nil
}

func commentTestService(repo *mockCommentRepo, resources *mockCommentResources, activities *mockActivityRecorder) *CommentService {
	return NewCommentService(repo, resources, activities, validator.New(), zap.NewNop())
}

func TestCreateCommentPersistsAndBumpsCounter(t *testing.T) {
	repo := newMockCommentRepo()
	resources := &mockCommentResources{resources: map[string]*models.Resource{"r1": {ID: "r1"}}}
	activities := &mockActivityRecorder{}
	svc := commentTestService(repo, resources, activities)

	comment, err := svc.Create(context.Background(), studentClaims("s1"), "r1", models.CreateCommentRequest{Body: "Very helpful, thanks!"})
	require.NoError(t, err)

	assert.NotEmpty(t, comment.ID)
	assert.Equal(t, "s1", comment.UserID)
	assert.Equal(t, "Test Student", comment.AuthorName)
	assert.Equal(t, 1, resources.resources["r1"].Stats.Comments)
	assert.Contains(t, activities.actions, models.ActivityComment)
}

func TestCreateCommentMissingResource(t *testing.T) {
	svc := commentTestService(newMockCommentRepo(), &mockCommentResources{resources: map[string]*models.Resource{}}, &mockActivityRecorder{})

	_, err := svc.Create(context.Background(), studentClaims("s1"), "missing", models.CreateCommentRequest{Body: "hello"})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestCreateCommentEmptyBodyRejected(t *testing.T) {
	resources := &mockCommentResources{resources: map[string]*models.Resource{"r1": {ID: "r1"}}}
	svc := commentTestService(newMockCommentRepo(), resources, &mockActivityRecorder{})

	_, err := svc.Create(context.Background(), studentClaims("s1"), "r1", models.CreateCommentRequest{Body: ""})
	require.Error(t, err)
}

func TestDeleteCommentRejectsNonAuthor(t *testing.T) {
	repo := newMockCommentRepo()
	resources := &mockCommentResources{resources: map[string]*models.Resource{"r1": {ID: "r1"}}}
	svc := commentTestService(repo, resources, &mockActivityRecorder{})

	comment, err := svc.Create(context.Background(), studentClaims("s1"), "r1", models.CreateCommentRequest{Body: "mine"})
	require.NoError(t, err)

	err = svc.Delete(context.Background(), studentClaims("s2"), comment.ID)
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotOwner.Code, appErr.Code)
}

func TestDeleteCommentAdminDecrementsCounter(t *testing.T) {
	repo := newMockCommentRepo()
	resources := &mockCommentResources{resources: map[string]*models.Resource{"r1": {ID: "r1"}}}
	svc := commentTestService(repo, resources, &mockActivityRecorder{})

	comment, err := svc.Create(context.Background(), studentClaims("s1"), "r1", models.CreateCommentRequest{Body: "spam"})
	require.NoError(t, err)
	require.Equal(t, 1, resources.resources["r1"].Stats.Comments)

	admin := &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}
	err = svc.Delete(context.Background(), admin, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, resources.resources["r1"].Stats.Comments)
}
