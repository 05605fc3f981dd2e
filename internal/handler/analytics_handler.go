package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/studyhive/studyhive-api/internal/models"
	"github.com/studyhive/studyhive-api/internal/service"
	appErrors "github.com/studyhive/studyhive-api/pkg/errors"
	"github.com/studyhive/studyhive-api/pkg/response"
)

// AnalyticsHandler exposes the admin dashboard and report exports.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
	metrics   *service.MetricsService
	exports   *service.ExportService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService, metrics *service.MetricsService, exports *service.ExportService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, metrics: metrics, exports: exports}
}

// Overview godoc
// @Summary Platform analytics overview
// @Description Dashboard aggregates. Failed sections are listed under degraded and zeroed rather than failing the report.
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/overview [get]
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}

	overview, err := h.analytics.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, overview, nil)
}

// SystemMetrics godoc
// @Summary Runtime metrics snapshot
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/system [get]
func (h *AnalyticsHandler) SystemMetrics(c *gin.Context) {
	if h.metrics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}

// ExportActivities godoc
// @Summary Export the activity log
// @Tags Analytics
// @Produce json
// @Param format query string false "csv or pdf, default csv"
// @Success 200 {object} response.Envelope
// @Router /analytics/export/activities [post]
func (h *AnalyticsHandler) ExportActivities(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}

	filter := models.ActivityFilter{
		UserID:   c.Query("user_id"),
		Page:     1,
		PageSize: queryInt(c, "limit", 1000),
	}

	result, err := h.exports.ExportActivities(c.Request.Context(), filter, exportFormat(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"url":        result.URL,
		"format":     result.Format,
		"expires_at": result.ExpiresAt,
	}, nil)
}

// ExportResources godoc
// @Summary Export the resource catalog
// @Tags Analytics
// @Produce json
// @Param format query string false "csv or pdf, default csv"
// @Success 200 {object} response.Envelope
// @Router /analytics/export/resources [post]
func (h *AnalyticsHandler) ExportResources(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}

	filter := models.ResourceFilter{
		Department: c.Query("department"),
		Semester:   queryIntPtr(c, "semester"),
		Page:       1,
		PageSize:   queryInt(c, "limit", 1000),
	}

	result, err := h.exports.ExportResources(c.Request.Context(), filter, exportFormat(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"url":        result.URL,
		"format":     result.Format,
		"expires_at": result.ExpiresAt,
	}, nil)
}

// DownloadExport streams a previously generated export file. The signed
// token in the path is the whole authorization.
func (h *AnalyticsHandler) DownloadExport(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}

	_, relPath, _, err := h.exports.ParseToken(c.Param("token"), false)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "export link is invalid or expired"))
		return
	}

	file, err := h.exports.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export no longer available"))
		return
	}
	defer file.Close()

	contentType := "text/csv"
	if strings.HasSuffix(relPath, ".pdf") {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", "attachment; filename=\""+filepath.Base(relPath)+"\"")
	c.Header("Content-Type", contentType)
	c.File(file.Name())
}

func exportFormat(c *gin.Context) service.ExportFormat {
	if strings.EqualFold(c.Query("format"), "pdf") {
		return service.ExportFormatPDF
	}
	return service.ExportFormatCSV
}
