package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/bioattend-api/internal/models"
)

// AttendanceRepository persists the per-day attendance ledger.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Insert stores a new mark. A second mark for the same subject and day is
// rejected by the primary key and never overwrites the first.
func (r *AttendanceRepository) Insert(ctx context.Context, mark *models.AttendanceMark) error {
	if mark.Status == "" {
		mark.Status = models.AttendanceStatusPresent
	}
	if !mark.Status.Valid() {
		return fmt.Errorf("insert attendance mark: unsupported status %q", mark.Status)
	}
	if mark.RecordedAt.IsZero() {
		mark.RecordedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendance_marks (subject_id, day, status, recorded_at) VALUES (:subject_id, :day, :status, :recorded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, mark); err != nil {
		return fmt.Errorf("insert attendance mark: %w", err)
	}
	return nil
}

// Find returns the stored mark for subject and day.
func (r *AttendanceRepository) Find(ctx context.Context, subjectID, day string) (*models.AttendanceMark, error) {
	query := r.db.Rebind("SELECT subject_id, day, status, recorded_at FROM attendance_marks WHERE subject_id = ? AND day = ?")
	var mark models.AttendanceMark
	if err := r.db.GetContext(ctx, &mark, query, subjectID, day); err != nil {
		return nil, err
	}
	return &mark, nil
}

// History lists a subject's marks newest day first.
func (r *AttendanceRepository) History(ctx context.Context, subjectID string, limit int) ([]models.AttendanceMark, error) {
	query := r.db.Rebind(fmt.Sprintf("SELECT subject_id, day, status, recorded_at FROM attendance_marks WHERE subject_id = ? ORDER BY day DESC LIMIT %d", limit))
	marks := make([]models.AttendanceMark, 0)
	if err := r.db.SelectContext(ctx, &marks, query, subjectID); err != nil {
		return nil, fmt.Errorf("attendance history: %w", err)
	}
	return marks, nil
}

// ForDay lists every mark recorded on day joined with its subject, ordered
// by external id.
func (r *AttendanceRepository) ForDay(ctx context.Context, day string) ([]models.DayAttendanceRecord, error) {
	query := r.db.Rebind(`SELECT s.id AS subject_id, s.display_name, s.external_id, a.day, a.status, a.recorded_at
        FROM attendance_marks a
        JOIN subjects s ON s.id = a.subject_id
        WHERE a.day = ?
        ORDER BY s.external_id ASC`)
	records := make([]models.DayAttendanceRecord, 0)
	if err := r.db.SelectContext(ctx, &records, query, day); err != nil {
		return nil, fmt.Errorf("attendance for day: %w", err)
	}
	return records, nil
}

// Stats aggregates a subject's marks. Days are stored as YYYY-MM-DD so MIN
// and MAX order chronologically.
func (r *AttendanceRepository) Stats(ctx context.Context, subjectID string) (*models.AttendanceStats, error) {
	query := r.db.Rebind("SELECT COUNT(*) AS total_count, MIN(day) AS first_day, MAX(day) AS last_day FROM attendance_marks WHERE subject_id = ?")
	var stats models.AttendanceStats
	if err := r.db.GetContext(ctx, &stats, query, subjectID); err != nil {
		return nil, fmt.Errorf("attendance stats: %w", err)
	}
	stats.SubjectID = subjectID
	return &stats, nil
}
