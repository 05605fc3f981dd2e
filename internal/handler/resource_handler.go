package handler

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/studyhive/studyhive-api/internal/models"
	"github.com/studyhive/studyhive-api/internal/service"
	appErrors "github.com/studyhive/studyhive-api/pkg/errors"
	"github.com/studyhive/studyhive-api/pkg/response"
)

type signedFileOpener interface {
	ParseDownloadToken(token string) (relPath string, err error)
	OpenFile(relPath string) (io.ReadSeekCloser, error)
}

// ResourceHandler exposes the resource lifecycle over HTTP.
type ResourceHandler struct {
	resources *service.ResourceService
	comments  *service.CommentService
	files     signedFileOpener
}

// NewResourceHandler constructs a resource handler.
func NewResourceHandler(resources *service.ResourceService, comments *service.CommentService, files signedFileOpener) *ResourceHandler {
	return &ResourceHandler{resources: resources, comments: comments, files: files}
}

// Create godoc
// @Summary Upload a resource
// @Description Create a resource from a multipart form. LINK resources carry an external URL instead of a file.
// @Tags Resources
// @Accept mpfd
// @Produce json
// @Param title formData string true "Title"
// @Param type formData string true "Resource type"
// @Param subject formData string true "Subject"
// @Param department formData string true "Department"
// @Param semester formData int true "Semester, 0 targets all students"
// @Param file formData file false "Resource file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /resources [post]
func (h *ResourceHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	req := models.CreateResourceRequest{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Type:        models.ResourceType(strings.ToUpper(c.PostForm("type"))),
		Subject:     c.PostForm("subject"),
		Department:  c.PostForm("department"),
		ExternalURL: c.PostForm("external_url"),
		Tags:        c.PostForm("tags"),
	}
	if raw := c.PostForm("semester"); raw != "" {
		if semester := parseFormInt(raw); semester != nil {
			req.Semester = semester
		}
	}

	var upload *service.Upload
	fileHeader, err := c.FormFile("file")
	if err == nil && fileHeader != nil {
		file, err := fileHeader.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable file part"))
			return
		}
		defer file.Close()
		upload = &service.Upload{
			FileName:    filepath.Base(fileHeader.Filename),
			ContentType: fileHeader.Header.Get("Content-Type"),
			Size:        fileHeader.Size,
			Reader:      file,
		}
	}

	resource, err := h.resources.Create(c.Request.Context(), claims, req, upload)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, resource)
}

// List godoc
// @Summary List resources
// @Tags Resources
// @Produce json
// @Param department query string false "Department filter"
// @Param semester query int false "Semester filter"
// @Param type query string false "Resource type filter"
// @Param subject query string false "Subject filter"
// @Param search query string false "Title search"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /resources [get]
func (h *ResourceHandler) List(c *gin.Context) {
	filter := models.ResourceFilter{
		Department: c.Query("department"),
		Semester:   queryIntPtr(c, "semester"),
		Subject:    c.Query("subject"),
		UploaderID: c.Query("uploader_id"),
		Search:     c.Query("search"),
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "page_size", 20),
		SortBy:     c.Query("sort_by"),
		SortOrder:  c.Query("sort_order"),
	}
	if raw := c.Query("type"); raw != "" {
		resourceType := models.ResourceType(strings.ToUpper(raw))
		filter.Type = &resourceType
	}

	resources, pagination, err := h.resources.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, resources, pagination)
}

// Get godoc
// @Summary Fetch a resource
// @Description Return one resource, counting the read as a view
// @Tags Resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id} [get]
func (h *ResourceHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	resource, err := h.resources.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, resource, nil)
}

// Update godoc
// @Summary Update resource metadata
// @Tags Resources
// @Accept json
// @Produce json
// @Param id path string true "Resource ID"
// @Param payload body models.UpdateResourceRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id} [patch]
// @Router /resources/{id} [put]
func (h *ResourceHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UpdateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid update payload"))
		return
	}

	resource, err := h.resources.Update(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, resource, nil)
}

// Delete godoc
// @Summary Delete a resource
// @Tags Resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id} [delete]
func (h *ResourceHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.resources.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Like godoc
// @Summary Set the like state
// @Description Drive the caller's like on a resource to the requested state. Sending the current state is a no-op.
// @Tags Resources
// @Accept json
// @Produce json
// @Param id path string true "Resource ID"
// @Param payload body models.LikeRequest true "Desired like state"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id}/like [post]
func (h *ResourceHandler) Like(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.LikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "like is required"))
		return
	}

	result, err := h.resources.SetLike(c.Request.Context(), claims, c.Param("id"), *req.Like)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// IncrementStats godoc
// @Summary Increment an engagement counter
// @Description Bump one counter on a resource and return the fresh totals
// @Tags Resources
// @Accept json
// @Produce json
// @Param payload body models.StatIncrementRequest true "Counter to bump"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/stats [post]
func (h *ResourceHandler) IncrementStats(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.StatIncrementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "resource_id and action are required"))
		return
	}

	stats, err := h.resources.IncrementStat(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats, nil)
}

// Download godoc
// @Summary Request a download link
// @Description Record the download and return a signed, expiring URL
// @Tags Resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id}/download [post]
func (h *ResourceHandler) Download(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	ticket, err := h.resources.Download(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, ticket, nil)
}

// Stats godoc
// @Summary Resource engagement stats
// @Tags Resources
// @Produce json
// @Param id path string true "Resource ID"
// @Param days query int false "Daily view window, default 30"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id}/stats [get]
func (h *ResourceHandler) Stats(c *gin.Context) {
	report, err := h.resources.Stats(c.Request.Context(), c.Param("id"), queryInt(c, "days", 30))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ServeFile streams the file behind a signed download token. The token is
// the whole authorization; no session is required.
func (h *ResourceHandler) ServeFile(c *gin.Context) {
	relPath, err := h.files.ParseDownloadToken(c.Param("token"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "download link is invalid or expired"))
		return
	}

	file, err := h.files.OpenFile(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", "attachment; filename=\""+filepath.Base(relPath)+"\"")
	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, file); err != nil {
		_ = c.Error(err)
	}
}

// CreateComment godoc
// @Summary Comment on a resource
// @Tags Comments
// @Accept json
// @Produce json
// @Param id path string true "Resource ID"
// @Param payload body models.CreateCommentRequest true "Comment payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id}/comments [post]
func (h *ResourceHandler) CreateComment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid comment payload"))
		return
	}

	comment, err := h.comments.Create(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, comment)
}

// ListComments godoc
// @Summary List a resource's comments
// @Tags Comments
// @Produce json
// @Param id path string true "Resource ID"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /resources/{id}/comments [get]
func (h *ResourceHandler) ListComments(c *gin.Context) {
	filter := models.CommentFilter{
		ResourceID: c.Param("id"),
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "page_size", 20),
	}

	comments, pagination, err := h.comments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, comments, pagination)
}

// DeleteComment godoc
// @Summary Delete a comment
// @Tags Comments
// @Produce json
// @Param id path string true "Resource ID"
// @Param commentId path string true "Comment ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /resources/{id}/comments/{commentId} [delete]
func (h *ResourceHandler) DeleteComment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.comments.Delete(c.Request.Context(), claims, c.Param("commentId")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
