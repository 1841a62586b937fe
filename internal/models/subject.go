package models

import "time"

// Subject is an enrolled person. ExternalID (the roll number) and Template
// are each unique across all subjects.
type Subject struct {
	ID          string    `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	ExternalID  string    `db:"external_id" json:"external_id"`
	Template    string    `db:"template" json:"template"`
	EnrolledAt  time.Time `db:"enrolled_at" json:"enrolled_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectTemplate is the projection scanned during verification.
type SubjectTemplate struct {
	ID       string `db:"id"`
	Template string `db:"template"`
}

// SubjectPatch carries a partial update; nil fields keep their stored value.
type SubjectPatch struct {
	DisplayName *string
	ExternalID  *string
	Template    *string
}

// Empty reports whether the patch changes nothing.
func (p SubjectPatch) Empty() bool {
	return p.DisplayName == nil && p.ExternalID == nil && p.Template == nil
}

// SubjectFilter encapsulates allowed search parameters for listing subjects.
type SubjectFilter struct {
	Search   string
	Page     int
	PageSize int
}

// SubjectDeletion reports what a cascade delete removed.
type SubjectDeletion struct {
	Subject      Subject `json:"subject"`
	MarksRemoved int64   `json:"marks_removed"`
	Message      string  `json:"message"`
}
