// Package biometric simulates iris enrollment: uploads are validated once at
// intake, reduced to a digest template and compared by an exact matcher.
package biometric

import (
	"crypto/sha256"
	"encoding/hex"

	appErrors "github.com/noah-isme/bioattend-api/pkg/errors"
)

// TemplateLength is the size of a hex-encoded SHA-256 template.
const TemplateLength = sha256.Size * 2

// ErrEmptyImage is returned when there are no bytes to derive from.
var ErrEmptyImage = appErrors.Clone(appErrors.ErrValidation, "no image data provided")

// Template is the opaque identifier standing in for an iris feature vector.
type Template string

// String implements fmt.Stringer.
func (t Template) String() string { return string(t) }

// Valid reports whether t has the shape DeriveTemplate produces.
func (t Template) Valid() bool {
	if len(t) != TemplateLength {
		return false
	}
	for i := 0; i < len(t); i++ {
		c := t[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// DeriveTemplate digests the raw image bytes. The result depends on the bytes
// alone, so any single-bit change yields an unrelated template.
func DeriveTemplate(data []byte) (Template, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	sum := sha256.Sum256(data)
	return Template(hex.EncodeToString(sum[:])), nil
}
