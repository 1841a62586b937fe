package database

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Constraint identifies a storage-level integrity rule.
type Constraint string

const (
	ConstraintSubjectExternalID Constraint = "uq_subjects_external_id"
	ConstraintSubjectTemplate   Constraint = "uq_subjects_template"
	ConstraintAttendanceDay     Constraint = "pk_attendance_marks"
	ConstraintAttendanceSubject Constraint = "fk_attendance_marks_subject"
)

// Violation reports which schema constraint rejected a write, if any. It
// understands lib/pq, pgx and modernc SQLite errors.
func Violation(err error) (Constraint, bool) {
	if err == nil {
		return "", false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "23" {
		return resolve(pqErr.Constraint + " " + pqErr.Message)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return resolve(pgErr.ConstraintName + " " + pgErr.Message)
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		if liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
			return ConstraintAttendanceSubject, true
		}
		return resolve(liteErr.Error())
	}

	return "", false
}

func resolve(text string) (Constraint, bool) {
	text = strings.ToLower(text)
	switch {
	case strings.Contains(text, "external_id"):
		return ConstraintSubjectExternalID, true
	case strings.Contains(text, "template"):
		return ConstraintSubjectTemplate, true
	case strings.Contains(text, "foreign key"), strings.Contains(text, string(ConstraintAttendanceSubject)):
		return ConstraintAttendanceSubject, true
	case strings.Contains(text, "attendance_marks"):
		return ConstraintAttendanceDay, true
	}
	return "", false
}
