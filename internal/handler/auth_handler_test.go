package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studyhive/studyhive-api/internal/models"
	"github.com/studyhive/studyhive-api/internal/service"
)

type fakeAuthRepo struct {
	users map[string]*models.User
}

func (f *fakeAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) Create(ctx context.Context, user *models.User) error {
	copy := *user
	f.users[user.ID] = &copy
	return nil
}

func (f *fakeAuthRepo) SetOTP(ctx context.Context, id, code string, expiresAt time.Time) error {
	return nil
}

func (f *fakeAuthRepo) MarkVerified(ctx context.Context, id string) error { return nil }

func (f *fakeAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (f *fakeAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	return nil
}

func (f *fakeAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error { return nil }

func (f *fakeAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	return nil
}

func (f *fakeAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	return nil
}

type silentMailer struct{}

func (silentMailer) SendOTP(to, fullName, code string) error { return nil }

func newTestAuthHandler() *AuthHandler {
	svc := service.NewAuthService(
		&fakeAuthRepo{users: make(map[string]*models.User)},
		silentMailer{},
		validator.New(),
		zap.NewNop(),
		service.AuthConfig{
			AccessTokenSecret:  "test-secret",
			AccessTokenExpiry:  time.Hour,
			RefreshTokenExpiry: 24 * time.Hour,
			Issuer:             "studyhive-test",
			FacultySecret:      "faculty-pass",
			OTPTTL:             10 * time.Minute,
			OTPLength:          6,
		},
	)
	return NewAuthHandler(svc)
}

func TestSignupHandlerRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestAuthHandler()

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/signup", bytes.NewBufferString("{not json"))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Signup(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignupHandlerCreatesStudent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestAuthHandler()

	body, _ := json.Marshal(map[string]interface{}{
		"email":      "student@example.com",
		"password":   "secret1",
		"full_name":  "Student",
		"role":       "STUDENT",
		"department": "CSE",
		"semester":   3,
	})
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/signup", bytes.NewBuffer(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Signup(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	var envelope struct {
		Data models.UserInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "student@example.com", envelope.Data.Email)
	assert.Equal(t, models.RoleStudent, envelope.Data.Role)
}

func TestLoginHandlerUnknownUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestAuthHandler()

	body, _ := json.Marshal(map[string]string{
		"email":    "nobody@example.com",
		"password": "secret1",
	})
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBuffer(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Login(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
