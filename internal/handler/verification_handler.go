package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/bioattend-api/internal/service"
	"github.com/noah-isme/bioattend-api/pkg/response"
)

type verificationService interface {
	Verify(ctx context.Context, image []byte) (*service.VerificationResult, error)
	DeriveTemplate(image []byte) (*service.TemplateResult, error)
}

// VerificationHandler exposes image verification and template derivation.
type VerificationHandler struct {
	verification verificationService
	maxUpload    int64
}

// NewVerificationHandler constructs VerificationHandler.
func NewVerificationHandler(verification verificationService, maxUpload int64) *VerificationHandler {
	return &VerificationHandler{verification: verification, maxUpload: uploadLimit(maxUpload)}
}

// Verify godoc
// @Summary Verify an iris image and mark attendance
// @Description Recognised subjects are marked present today. An unrecognised image returns recognized=false with status 200.
// @Tags Verification
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "Iris image"
// @Success 200 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /verify [post]
func (h *VerificationHandler) Verify(c *gin.Context) {
	image, err := requireImage(c, h.maxUpload)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.verification.Verify(c.Request.Context(), image)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Template godoc
// @Summary Derive the template for an image
// @Tags Verification
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "Iris image"
// @Success 200 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Security BearerAuth
// @Router /templates [post]
func (h *VerificationHandler) Template(c *gin.Context) {
	image, err := requireImage(c, h.maxUpload)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.verification.DeriveTemplate(image)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
