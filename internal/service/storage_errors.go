package service

import (
	"github.com/noah-isme/bioattend-api/internal/repository"
	"github.com/noah-isme/bioattend-api/pkg/database"
	appErrors "github.com/noah-isme/bioattend-api/pkg/errors"
)

// translateWrite maps a failed write onto the registry error kinds. Anything
// that is not a known constraint becomes a storage failure.
func translateWrite(err error, message string) error {
	if constraint, ok := database.Violation(err); ok {
		switch constraint {
		case database.ConstraintSubjectExternalID:
			return appErrors.Wrap(err, appErrors.ErrDuplicateExternalID.Code, appErrors.ErrDuplicateExternalID.Status, appErrors.ErrDuplicateExternalID.Message)
		case database.ConstraintSubjectTemplate:
			return appErrors.Wrap(err, appErrors.ErrDuplicateTemplate.Code, appErrors.ErrDuplicateTemplate.Status, appErrors.ErrDuplicateTemplate.Message)
		case database.ConstraintAttendanceSubject:
			return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "subject not found")
		}
	}
	return appErrors.Storage(err, message)
}

// translateRead maps a failed single-row read.
func translateRead(err error, notFound, message string) error {
	if repository.IsNotFound(err) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Storage(err, message)
}
