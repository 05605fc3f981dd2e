package handler

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhive/studyhive-api/internal/middleware"
	"github.com/studyhive/studyhive-api/internal/models"
)

type nopReadSeekCloser struct {
	*bytes.Reader
}

func (nopReadSeekCloser) Close() error { return nil }

type fakeFileOpener struct {
	paths map[string]string
	files map[string][]byte
}

func (f *fakeFileOpener) ParseDownloadToken(token string) (string, error) {
	if relPath, ok := f.paths[token]; ok {
		return relPath, nil
	}
	return "", errors.New("bad token")
}

func (f *fakeFileOpener) OpenFile(relPath string) (io.ReadSeekCloser, error) {
	if data, ok := f.files[relPath]; ok {
		return nopReadSeekCloser{bytes.NewReader(data)}, nil
	}
	return nil, errors.New("not found")
}

func TestServeFileRejectsInvalidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewResourceHandler(nil, nil, &fakeFileOpener{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/files/forged", nil)
	c.Params = gin.Params{{Key: "token", Value: "forged"}}

	handler.ServeFile(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServeFileStreamsContent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	opener := &fakeFileOpener{
		paths: map[string]string{"good-token": "resources/r1.pdf"},
		files: map[string][]byte{"resources/r1.pdf": []byte("pdf bytes")},
	}
	handler := NewResourceHandler(nil, nil, opener)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/files/good-token", nil)
	c.Params = gin.Params{{Key: "token", Value: "good-token"}}

	handler.ServeFile(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pdf bytes", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "r1.pdf")
}

func TestServeFileMissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	opener := &fakeFileOpener{
		paths: map[string]string{"good-token": "resources/gone.pdf"},
		files: map[string][]byte{},
	}
	handler := NewResourceHandler(nil, nil, opener)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/files/good-token", nil)
	c.Params = gin.Params{{Key: "token", Value: "good-token"}}

	handler.ServeFile(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateResourceRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewResourceHandler(nil, nil, &fakeFileOpener{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/resources", nil)

	handler.Create(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLikeRequiresExplicitState(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewResourceHandler(nil, nil, &fakeFileOpener{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	body := bytes.NewBufferString(`{}`)
	c.Request = httptest.NewRequest(http.MethodPost, "/resources/r1/like", body)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "r1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleStudent})

	handler.Like(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateDispatchesOnPutAndPatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewResourceHandler(nil, nil, &fakeFileOpener{})

	r := gin.New()
	r.PATCH("/api/v1/resources/:id", handler.Update)
	r.PUT("/api/v1/resources/:id", handler.Update)

	for _, method := range []string{http.MethodPut, http.MethodPatch} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(method, "/api/v1/resources/r1", bytes.NewBufferString(`{"title":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, method)
	}
}

func TestIncrementStatsRequiresBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewResourceHandler(nil, nil, &fakeFileOpener{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/resources/stats", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleStudent})

	handler.IncrementStats(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
