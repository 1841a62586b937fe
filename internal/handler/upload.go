package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/bioattend-api/internal/biometric"
	appErrors "github.com/noah-isme/bioattend-api/pkg/errors"
)

const imageField = "image"

func uploadLimit(maxBytes int64) int64 {
	if maxBytes <= 0 {
		return biometric.DefaultMaxImageBytes
	}
	return maxBytes
}

// multipartOverhead allows for form fields and part headers around the image.
const multipartOverhead int64 = 1 << 20

func tooLarge(maxBytes int64) error {
	return appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file too large, upload an image smaller than %d bytes", maxBytes))
}

// parseUpload caps the request body at maxBytes plus multipartOverhead and
// parses the multipart form. Reading stops at the cap, so an oversize body
// is never spooled in full.
func parseUpload(c *gin.Context, maxBytes int64) error {
	if c.Request.MultipartForm != nil {
		return nil
	}
	limit := maxBytes + multipartOverhead
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	if err := c.Request.ParseMultipartForm(limit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return tooLarge(maxBytes)
		}
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid multipart payload")
	}
	return nil
}

// readImage loads the multipart image field. It reads at most maxBytes+1 so
// the service layer can reject oversize uploads without buffering them whole.
// ok is false when the field is absent.
func readImage(c *gin.Context, maxBytes int64) (data []byte, ok bool, err error) {
	if err := parseUpload(c, maxBytes); err != nil {
		return nil, false, err
	}
	header, err := c.FormFile(imageField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, false, nil
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid multipart payload")
	}
	if header.Size > maxBytes {
		return nil, false, tooLarge(maxBytes)
	}

	file, err := header.Open()
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to open uploaded image")
	}
	defer file.Close() //nolint:errcheck

	data, err = io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read uploaded image")
	}
	return data, true, nil
}

// requireImage is readImage for endpoints where the image is mandatory.
func requireImage(c *gin.Context, maxBytes int64) ([]byte, error) {
	data, ok, err := readImage(c, maxBytes)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "image file is required")
	}
	return data, nil
}
