package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/bioattend-api/internal/biometric"
	"github.com/noah-isme/bioattend-api/internal/models"
	appErrors "github.com/noah-isme/bioattend-api/pkg/errors"
)

type templateSource interface {
	ListTemplates(ctx context.Context) ([]models.SubjectTemplate, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type attendanceMarker interface {
	Mark(ctx context.Context, subjectID, day string) (*models.MarkResult, error)
}

// VerificationResult is the outcome of presenting an image. An unrecognised
// image is a normal result, not an error.
type VerificationResult struct {
	Recognized bool                   `json:"recognized"`
	Subject    *models.Subject        `json:"subject,omitempty"`
	Outcome    models.MarkOutcome     `json:"outcome,omitempty"`
	Mark       *models.AttendanceMark `json:"mark,omitempty"`
	Template   string                 `json:"template"`
}

// TemplateResult describes a derived template and the image it came from.
type TemplateResult struct {
	Template string              `json:"template"`
	Image    biometric.ImageInfo `json:"image"`
}

// VerificationService matches presented images against the registry and
// marks today's attendance for recognised subjects.
type VerificationService struct {
	subjects   templateSource
	attendance attendanceMarker
	matcher    biometric.Matcher
	intake     *biometric.Intake
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewVerificationService constructs the verification service. A nil matcher
// means exact matching.
func NewVerificationService(subjects templateSource, attendance attendanceMarker, matcher biometric.Matcher, intake *biometric.Intake, metrics *MetricsService, logger *zap.Logger) *VerificationService {
	if matcher == nil {
		matcher = biometric.ExactMatcher{}
	}
	if intake == nil {
		intake = biometric.NewIntake(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationService{subjects: subjects, attendance: attendance, matcher: matcher, intake: intake, metrics: metrics, logger: logger}
}

// DeriveTemplate validates image and returns its template with image details.
func (s *VerificationService) DeriveTemplate(image []byte) (*TemplateResult, error) {
	info, err := s.intake.Inspect(image)
	if err != nil {
		return nil, err
	}
	template, err := biometric.DeriveTemplate(image)
	if err != nil {
		return nil, err
	}
	return &TemplateResult{Template: template.String(), Image: info}, nil
}

// Verify derives the template of image, scans enrolled templates for the
// first match and, on a match, marks the subject present today.
func (s *VerificationService) Verify(ctx context.Context, image []byte) (*VerificationResult, error) {
	derived, err := s.DeriveTemplate(image)
	if err != nil {
		s.metrics.RecordVerification("rejected")
		return nil, err
	}
	probe := biometric.Template(derived.Template)

	candidates, err := s.subjects.ListTemplates(ctx)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load enrolled templates")
	}

	match, ok := biometric.Match(s.matcher, probe, candidates)
	if !ok {
		s.metrics.RecordVerification("unrecognized")
		s.logger.Info("verification unrecognized", zap.Int("candidates", len(candidates)))
		return &VerificationResult{Recognized: false, Template: derived.Template}, nil
	}

	subject, err := s.subjects.FindByID(ctx, match.ID)
	if err != nil {
		return nil, translateRead(err, "subject not found", "failed to load subject")
	}

	result, err := s.attendance.Mark(ctx, subject.ID, "")
	if err != nil {
		return nil, err
	}

	s.metrics.RecordVerification("recognized")
	s.logger.Info("verification recognized",
		zap.String("subject_id", subject.ID),
		zap.String("outcome", string(result.Outcome)),
	)
	mark := result.Mark
	return &VerificationResult{
		Recognized: true,
		Subject:    subject,
		Outcome:    result.Outcome,
		Mark:       &mark,
		Template:   derived.Template,
	}, nil
}
