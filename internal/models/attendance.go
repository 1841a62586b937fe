package models

import "time"

// DayLayout is the calendar-day key format used by the ledger.
const DayLayout = "2006-01-02"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const AttendanceStatusPresent AttendanceStatus = "present"

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	return s == AttendanceStatusPresent
}

// AttendanceMark is the single record for a subject on a calendar day.
type AttendanceMark struct {
	SubjectID  string           `db:"subject_id" json:"subject_id"`
	Day        string           `db:"day" json:"day"`
	Status     AttendanceStatus `db:"status" json:"status"`
	RecordedAt time.Time        `db:"recorded_at" json:"recorded_at"`
}

// MarkOutcome distinguishes a fresh mark from a repeat on the same day.
type MarkOutcome string

const (
	MarkOutcomeMarked        MarkOutcome = "marked"
	MarkOutcomeAlreadyMarked MarkOutcome = "already_marked"
)

// MarkResult is returned by the ledger for every mark attempt. Mark holds the
// stored row in both outcomes.
type MarkResult struct {
	Outcome MarkOutcome    `json:"outcome"`
	Mark    AttendanceMark `json:"mark"`
}

// DayAttendanceRecord joins a mark with its subject for day reports.
type DayAttendanceRecord struct {
	SubjectID   string           `db:"subject_id" json:"subject_id"`
	DisplayName string           `db:"display_name" json:"display_name"`
	ExternalID  string           `db:"external_id" json:"external_id"`
	Day         string           `db:"day" json:"day"`
	Status      AttendanceStatus `db:"status" json:"status"`
	RecordedAt  time.Time        `db:"recorded_at" json:"recorded_at"`
}

// DayReport summarises one calendar day.
type DayReport struct {
	Day           string                `json:"day"`
	Records       []DayAttendanceRecord `json:"records"`
	TotalSubjects int                   `json:"total_subjects"`
	Present       int                   `json:"present"`
	Absent        int                   `json:"absent"`
}

// AttendanceStats aggregates a subject's ledger. FirstDay and LastDay are nil
// when the subject has no marks.
type AttendanceStats struct {
	SubjectID  string  `db:"subject_id" json:"subject_id"`
	TotalCount int     `db:"total_count" json:"total_count"`
	FirstDay   *string `db:"first_day" json:"first_day"`
	LastDay    *string `db:"last_day" json:"last_day"`
}
