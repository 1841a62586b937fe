package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/bioattend-api/internal/models"
	"github.com/noah-isme/bioattend-api/internal/service"
	appErrors "github.com/noah-isme/bioattend-api/pkg/errors"
	"github.com/noah-isme/bioattend-api/pkg/response"
)

type subjectService interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Subject, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.Subject, error)
	GetByTemplate(ctx context.Context, template string) (*models.Subject, error)
	Enroll(ctx context.Context, req service.EnrollSubjectRequest, image []byte) (*models.Subject, error)
	Update(ctx context.Context, id string, req service.UpdateSubjectRequest, image []byte) (*models.Subject, error)
	Delete(ctx context.Context, id string) (*models.SubjectDeletion, error)
}

// SubjectHandler exposes registry endpoints.
type SubjectHandler struct {
	subjects  subjectService
	maxUpload int64
}

// NewSubjectHandler constructs SubjectHandler.
func NewSubjectHandler(subjects subjectService, maxUpload int64) *SubjectHandler {
	return &SubjectHandler{subjects: subjects, maxUpload: uploadLimit(maxUpload)}
}

// List godoc
// @Summary List enrolled subjects
// @Tags Subjects
// @Produce json
// @Param search query string false "Search by name or external id"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /subjects [get]
func (h *SubjectHandler) List(c *gin.Context) {
	var filter models.SubjectFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	subjects, pagination, err := h.subjects.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, pagination)
}

// Get godoc
// @Summary Get subject
// @Tags Subjects
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /subjects/{id} [get]
func (h *SubjectHandler) Get(c *gin.Context) {
	subject, err := h.subjects.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject, nil)
}

// GetByExternalID godoc
// @Summary Find subject by external id
// @Tags Subjects
// @Produce json
// @Param externalId path string true "External ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /subjects/by-external-id/{externalId} [get]
func (h *SubjectHandler) GetByExternalID(c *gin.Context) {
	subject, err := h.subjects.GetByExternalID(c.Request.Context(), c.Param("externalId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject, nil)
}

// GetByTemplate godoc
// @Summary Find subject by template
// @Tags Subjects
// @Produce json
// @Param template path string true "Template"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /subjects/by-template/{template} [get]
func (h *SubjectHandler) GetByTemplate(c *gin.Context) {
	subject, err := h.subjects.GetByTemplate(c.Request.Context(), c.Param("template"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject, nil)
}

// Enroll godoc
// @Summary Enroll subject
// @Tags Subjects
// @Accept multipart/form-data
// @Produce json
// @Param name formData string true "Display name"
// @Param external_id formData string true "External ID"
// @Param image formData file true "Iris image"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Security BearerAuth
// @Router /subjects [post]
func (h *SubjectHandler) Enroll(c *gin.Context) {
	image, err := requireImage(c, h.maxUpload)
	if err != nil {
		response.Error(c, err)
		return
	}
	req := service.EnrollSubjectRequest{
		DisplayName: c.PostForm("name"),
		ExternalID:  c.PostForm("external_id"),
	}
	subject, err := h.subjects.Enroll(c.Request.Context(), req, image)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, subject)
}

// Update godoc
// @Summary Update subject
// @Description Multipart fields are optional; a new image replaces the template. JSON bodies may change name and external_id only.
// @Tags Subjects
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Param id path string true "Subject ID"
// @Param name formData string false "Display name"
// @Param external_id formData string false "External ID"
// @Param image formData file false "Iris image"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /subjects/{id} [patch]
func (h *SubjectHandler) Update(c *gin.Context) {
	var req service.UpdateSubjectRequest
	var image []byte

	if strings.HasPrefix(c.ContentType(), "application/json") {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	} else {
		if err := parseUpload(c, h.maxUpload); err != nil {
			response.Error(c, err)
			return
		}
		if name, ok := c.GetPostForm("name"); ok {
			req.DisplayName = &name
		}
		if externalID, ok := c.GetPostForm("external_id"); ok {
			req.ExternalID = &externalID
		}
		data, ok, err := readImage(c, h.maxUpload)
		if err != nil {
			response.Error(c, err)
			return
		}
		if ok {
			image = data
		}
	}

	subject, err := h.subjects.Update(c.Request.Context(), c.Param("id"), req, image)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject, nil)
}

// Delete godoc
// @Summary Delete subject and attendance
// @Tags Subjects
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /subjects/{id} [delete]
func (h *SubjectHandler) Delete(c *gin.Context) {
	result, err := h.subjects.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
