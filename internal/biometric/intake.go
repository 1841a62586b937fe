package biometric

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	appErrors "github.com/noah-isme/bioattend-api/pkg/errors"
)

// DefaultMaxImageBytes caps uploads when no limit is configured.
const DefaultMaxImageBytes int64 = 16 * 1024 * 1024

// supportedFormats lists the raster formats accepted at intake, keyed by the
// name image.DecodeConfig reports.
var supportedFormats = map[string]struct{}{
	"png":  {},
	"jpeg": {},
	"bmp":  {},
	"tiff": {},
}

// ImageInfo describes an accepted upload.
type ImageInfo struct {
	Format    string `json:"format"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SizeBytes int    `json:"size_bytes"`
}

// Intake is the one authoritative upload check: size, then a header decode
// restricted to supportedFormats.
type Intake struct {
	MaxBytes int64
}

// NewIntake builds an Intake with the given byte limit.
func NewIntake(maxBytes int64) *Intake {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &Intake{MaxBytes: maxBytes}
}

// Inspect validates an upload held in memory.
func (in *Intake) Inspect(data []byte) (ImageInfo, error) {
	if len(data) == 0 {
		return ImageInfo{}, ErrEmptyImage
	}
	if int64(len(data)) > in.limit() {
		return ImageInfo{}, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file too large, upload an image smaller than %d bytes", in.limit()))
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, appErrors.Wrap(err, appErrors.ErrUnsupportedFormat.Code, appErrors.ErrUnsupportedFormat.Status, appErrors.ErrUnsupportedFormat.Message)
	}
	if _, ok := supportedFormats[format]; !ok {
		return ImageInfo{}, appErrors.Clone(appErrors.ErrUnsupportedFormat, fmt.Sprintf("unsupported image format %q, upload a JPEG, PNG, BMP or TIFF image", format))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ImageInfo{}, appErrors.Clone(appErrors.ErrUnsupportedFormat, "image has no pixels")
	}

	return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height, SizeBytes: len(data)}, nil
}

func (in *Intake) limit() int64 {
	if in == nil || in.MaxBytes <= 0 {
		return DefaultMaxImageBytes
	}
	return in.MaxBytes
}
