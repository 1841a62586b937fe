package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/bioattend-api/internal/biometric"
	"github.com/noah-isme/bioattend-api/internal/models"
	"github.com/noah-isme/bioattend-api/internal/repository"
	appErrors "github.com/noah-isme/bioattend-api/pkg/errors"
)

type subjectRepository interface {
	Create(ctx context.Context, subject *models.Subject) error
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Subject, error)
	FindByTemplate(ctx context.Context, template string) (*models.Subject, error)
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	Update(ctx context.Context, id string, patch models.SubjectPatch) (*models.Subject, error)
	Delete(ctx context.Context, id string) (*models.Subject, int64, error)
}

// ImageArchive keeps a copy of enrollment images on disk.
type ImageArchive interface {
	Save(name string, data []byte) (string, error)
	RemoveAll(name string) error
}

// EnrollSubjectRequest holds the text fields of an enrollment.
type EnrollSubjectRequest struct {
	DisplayName string `json:"name" validate:"required,max=120"`
	ExternalID  string `json:"external_id" validate:"required,max=64"`
}

// UpdateSubjectRequest holds the optional text fields of an edit.
type UpdateSubjectRequest struct {
	DisplayName *string `json:"name" validate:"omitnil,min=1,max=120"`
	ExternalID  *string `json:"external_id" validate:"omitnil,min=1,max=64"`
}

// SubjectService is the registry: enrollment, lookups, edits and removal.
type SubjectService struct {
	repo      subjectRepository
	intake    *biometric.Intake
	archive   ImageArchive
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs the registry service. archive, cache and
// metrics may be nil.
func NewSubjectService(repo subjectRepository, intake *biometric.Intake, archive ImageArchive, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if intake == nil {
		intake = biometric.NewIntake(0)
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, intake: intake, archive: archive, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

// List returns subjects ordered by external id with pagination metadata.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Storage(err, "failed to list subjects")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return subjects, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a subject by id.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateRead(err, "subject not found", "failed to load subject")
	}
	return subject, nil
}

// GetByExternalID returns the subject enrolled under a roll number.
func (s *SubjectService) GetByExternalID(ctx context.Context, externalID string) (*models.Subject, error) {
	subject, err := s.repo.FindByExternalID(ctx, strings.TrimSpace(externalID))
	if err != nil {
		return nil, translateRead(err, "subject not found", "failed to load subject")
	}
	return subject, nil
}

// GetByTemplate returns the subject enrolled with a template.
func (s *SubjectService) GetByTemplate(ctx context.Context, template string) (*models.Subject, error) {
	normalized := biometric.Template(strings.ToLower(strings.TrimSpace(template)))
	if !normalized.Valid() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no subject enrolled with this template")
	}
	subject, err := s.repo.FindByTemplate(ctx, normalized.String())
	if err != nil {
		return nil, translateRead(err, "no subject enrolled with this template", "failed to load subject")
	}
	return subject, nil
}

// Enroll registers a subject with their iris image. The insert is the only
// uniqueness check; a rejected insert is reported as the duplicate it hit.
func (s *SubjectService) Enroll(ctx context.Context, req EnrollSubjectRequest, image []byte) (*models.Subject, error) {
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.ExternalID = strings.TrimSpace(req.ExternalID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	info, err := s.intake.Inspect(image)
	if err != nil {
		s.metrics.RecordEnrollment(appErrors.FromError(err).Code)
		return nil, err
	}
	template, err := biometric.DeriveTemplate(image)
	if err != nil {
		return nil, err
	}

	subject := &models.Subject{
		DisplayName: req.DisplayName,
		ExternalID:  req.ExternalID,
		Template:    template.String(),
	}
	if err := s.repo.Create(ctx, subject); err != nil {
		translated := translateWrite(err, "failed to enroll subject")
		s.metrics.RecordEnrollment(appErrors.FromError(translated).Code)
		return nil, translated
	}

	s.archiveImage(subject.ID, info.Format, image)
	s.cache.Invalidate(ctx, cacheKeyDayReportPattern)
	s.metrics.RecordEnrollment("enrolled")
	s.logger.Info("subject enrolled",
		zap.String("subject_id", subject.ID),
		zap.String("external_id", subject.ExternalID),
		zap.String("image_format", info.Format),
	)
	return subject, nil
}

// Update applies a partial edit. A new image replaces the template. Keeping a
// subject's own external id or template is never a collision.
func (s *SubjectService) Update(ctx context.Context, id string, req UpdateSubjectRequest, image []byte) (*models.Subject, error) {
	if req.DisplayName != nil {
		trimmed := strings.TrimSpace(*req.DisplayName)
		req.DisplayName = &trimmed
	}
	if req.ExternalID != nil {
		trimmed := strings.TrimSpace(*req.ExternalID)
		req.ExternalID = &trimmed
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	patch := models.SubjectPatch{DisplayName: req.DisplayName, ExternalID: req.ExternalID}
	var format string
	if image != nil {
		info, err := s.intake.Inspect(image)
		if err != nil {
			return nil, err
		}
		template, err := biometric.DeriveTemplate(image)
		if err != nil {
			return nil, err
		}
		value := template.String()
		patch.Template = &value
		format = info.Format
	}
	if patch.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "nothing to update")
	}

	subject, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, translateWrite(err, "failed to update subject")
	}

	if patch.Template != nil {
		s.archiveImage(subject.ID, format, image)
	}
	s.cache.Invalidate(ctx, cacheKeyDayReportPattern)
	s.logger.Info("subject updated", zap.String("subject_id", subject.ID))
	return subject, nil
}

// Delete removes a subject together with all of their attendance marks.
func (s *SubjectService) Delete(ctx context.Context, id string) (*models.SubjectDeletion, error) {
	subject, removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, translateRead(err, "subject not found", "failed to delete subject")
	}

	if s.archive != nil {
		if err := s.archive.RemoveAll(archiveDir(subject.ID)); err != nil {
			s.logger.Warn("failed to remove archived image", zap.String("subject_id", subject.ID), zap.Error(err))
		}
	}
	s.cache.Invalidate(ctx, cacheKeyDayReportPattern, statsCacheKey(subject.ID))
	s.logger.Info("subject deleted", zap.String("subject_id", subject.ID), zap.Int64("marks_removed", removed))

	return &models.SubjectDeletion{
		Subject:      *subject,
		MarksRemoved: removed,
		Message:      fmt.Sprintf("Subject %s and all attendance records deleted", subject.DisplayName),
	}, nil
}

func (s *SubjectService) archiveImage(subjectID, format string, image []byte) {
	if s.archive == nil {
		return
	}
	if err := s.archive.RemoveAll(archiveDir(subjectID)); err != nil {
		s.logger.Warn("failed to clear archived image", zap.String("subject_id", subjectID), zap.Error(err))
	}
	name := fmt.Sprintf("%s/iris.%s", archiveDir(subjectID), format)
	if _, err := s.archive.Save(name, image); err != nil {
		s.logger.Warn("failed to archive enrollment image", zap.String("subject_id", subjectID), zap.Error(err))
	}
}

func archiveDir(subjectID string) string {
	return "subjects/" + subjectID
}
