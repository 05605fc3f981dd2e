package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studyhive/studyhive-api/internal/models"
	appErrors "github.com/studyhive/studyhive-api/pkg/errors"
)

type mockUserRepo struct {
	users map[string]*models.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*models.User)}
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return sql.ErrNoRows
	}
	m.users[id].Active = false
	return nil
}

func TestAdminCreateUserSkipsVerification(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	semester := 2
	user, err := svc.Create(context.Background(), CreateUserRequest{
		Email:      "New.Student@Example.com",
		FullName:   "New Student",
		Role:       models.RoleStudent,
		Department: "CSE",
		Semester:   &semester,
		Active:     true,
		Password:   "secret1",
	})
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)
	assert.Equal(t, "new.student@example.com", user.Email)
	require.NotNil(t, user.Semester)
	assert.Equal(t, 2, *user.Semester)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", Email: "taken@example.com"}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email:      "taken@example.com",
		FullName:   "Dup",
		Role:       models.RoleFaculty,
		Department: "CSE",
		Password:   "secret1",
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestCreateStudentWithoutSemesterRejected(t *testing.T) {
	svc := NewUserService(newMockUserRepo(), validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email:      "student@example.com",
		FullName:   "Student",
		Role:       models.RoleStudent,
		Department: "CSE",
		Password:   "secret1",
	})
	require.Error(t, err)
}

func TestUpdateUserClearsSemesterOnPromotion(t *testing.T) {
	repo := newMockUserRepo()
	semester := 6
	repo.users["u1"] = &models.User{
		ID: "u1", Email: "student@example.com", FullName: "Student",
		Role: models.RoleStudent, Department: "CSE", Semester: &semester, Active: true,
	}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	updated, err := svc.Update(context.Background(), "u1", UpdateUserRequest{
		FullName:   "Student",
		Role:       models.RoleFaculty,
		Department: "CSE",
	})
	require.NoError(t, err)
	assert.Nil(t, updated.Semester)
}

func TestDeleteUserNotFound(t *testing.T) {
	svc := NewUserService(newMockUserRepo(), validator.New(), zap.NewNop())
	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
