package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/bioattend-api/internal/models"
)

const subjectColumns = "id, display_name, external_id, template, enrolled_at, updated_at"

// SubjectRepository manages persistence for enrolled subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs a SubjectRepository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// Create inserts a subject. Uniqueness of external_id and template is left to
// the schema; callers classify the returned error with database.Violation.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if subject.EnrolledAt.IsZero() {
		subject.EnrolledAt = now
	}
	subject.UpdatedAt = subject.EnrolledAt

	const query = `INSERT INTO subjects (id, display_name, external_id, template, enrolled_at, updated_at)
        VALUES (:id, :display_name, :external_id, :template, :enrolled_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// FindByID fetches a subject by its identifier.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	return r.findOne(ctx, r.db, "id", id)
}

// FindByExternalID fetches a subject by roll number.
func (r *SubjectRepository) FindByExternalID(ctx context.Context, externalID string) (*models.Subject, error) {
	return r.findOne(ctx, r.db, "external_id", externalID)
}

// FindByTemplate fetches the subject enrolled with the given template.
func (r *SubjectRepository) FindByTemplate(ctx context.Context, template string) (*models.Subject, error) {
	return r.findOne(ctx, r.db, "template", template)
}

func (r *SubjectRepository) findOne(ctx context.Context, q sqlx.QueryerContext, column, value string) (*models.Subject, error) {
	query := r.db.Rebind(fmt.Sprintf("SELECT %s FROM subjects WHERE %s = ?", subjectColumns, column))
	var subject models.Subject
	if err := sqlx.GetContext(ctx, q, &subject, query, value); err != nil {
		return nil, err
	}
	return &subject, nil
}

// List returns subjects ordered by external id.
func (r *SubjectRepository) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	where := ""
	var args []interface{}
	if search := strings.TrimSpace(filter.Search); search != "" {
		where = " WHERE (LOWER(display_name) LIKE ? OR LOWER(external_id) LIKE ?)"
		pattern := "%" + strings.ToLower(search) + "%"
		args = append(args, pattern, pattern)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := r.db.Rebind(fmt.Sprintf("SELECT %s FROM subjects%s ORDER BY external_id ASC LIMIT %d OFFSET %d", subjectColumns, where, size, offset))
	subjects := make([]models.Subject, 0)
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind("SELECT COUNT(*) FROM subjects"+where), args...); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}
	return subjects, total, nil
}

// Count returns the number of enrolled subjects.
func (r *SubjectRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM subjects"); err != nil {
		return 0, fmt.Errorf("count subjects: %w", err)
	}
	return total, nil
}

// ListTemplates returns every enrolled template in enrollment order.
func (r *SubjectRepository) ListTemplates(ctx context.Context) ([]models.SubjectTemplate, error) {
	templates := make([]models.SubjectTemplate, 0)
	if err := r.db.SelectContext(ctx, &templates, "SELECT id, template FROM subjects ORDER BY enrolled_at ASC, id ASC"); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// Update loads, merges and stores a partial change in one transaction. It
// returns sql.ErrNoRows when the subject does not exist.
func (r *SubjectRepository) Update(ctx context.Context, id string, patch models.SubjectPatch) (*models.Subject, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update subject: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	subject, err := r.findOne(ctx, tx, "id", id)
	if err != nil {
		return nil, err
	}
	if patch.DisplayName != nil {
		subject.DisplayName = *patch.DisplayName
	}
	if patch.ExternalID != nil {
		subject.ExternalID = *patch.ExternalID
	}
	if patch.Template != nil {
		subject.Template = *patch.Template
	}
	subject.UpdatedAt = time.Now().UTC()

	const query = `UPDATE subjects SET display_name = :display_name, external_id = :external_id, template = :template, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, subject); err != nil {
		return nil, fmt.Errorf("update subject: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update subject: %w", err)
	}
	committed = true
	return subject, nil
}

// Delete removes a subject and all of its marks in one transaction and
// returns the removed subject with the number of marks deleted.
func (r *SubjectRepository) Delete(ctx context.Context, id string) (*models.Subject, int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("begin delete subject: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	subject, err := r.findOne(ctx, tx, "id", id)
	if err != nil {
		return nil, 0, err
	}

	res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM attendance_marks WHERE subject_id = ?"), id)
	if err != nil {
		return nil, 0, fmt.Errorf("delete attendance marks: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return nil, 0, fmt.Errorf("delete attendance marks: %w", err)
	}

	res, err = tx.ExecContext(ctx, tx.Rebind("DELETE FROM subjects WHERE id = ?"), id)
	if err != nil {
		return nil, 0, fmt.Errorf("delete subject: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, 0, sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("commit delete subject: %w", err)
	}
	committed = true
	return subject, removed, nil
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
