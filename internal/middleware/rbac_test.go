package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/studyhive/studyhive-api/internal/models"
)

func rbacStatus(t *testing.T, role models.UserRole, allowed ...models.UserRole) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/guarded",
		func(c *gin.Context) {
			c.Set(ContextUserKey, &models.JWTClaims{UserID: "u1", Role: role})
		},
		RequireRoles(allowed...),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/guarded", nil))
	return rec.Code
}

func TestRequireRolesAdmitsEachListedRole(t *testing.T) {
	assert.Equal(t, http.StatusOK, rbacStatus(t, models.RoleAdmin, models.RoleAdmin, models.RoleFaculty))
	assert.Equal(t, http.StatusOK, rbacStatus(t, models.RoleFaculty, models.RoleAdmin, models.RoleFaculty))
}

func TestRequireRolesRejectsUnlistedRole(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, rbacStatus(t, models.RoleStudent, models.RoleAdmin, models.RoleFaculty))
}
