package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/bioattend-api/internal/models"
	"github.com/noah-isme/bioattend-api/pkg/database"
	appErrors "github.com/noah-isme/bioattend-api/pkg/errors"
)

const (
	defaultHistoryLimit = 30
	maxHistoryLimit     = 365
)

type attendanceRepository interface {
	Insert(ctx context.Context, mark *models.AttendanceMark) error
	Find(ctx context.Context, subjectID, day string) (*models.AttendanceMark, error)
	History(ctx context.Context, subjectID string, limit int) ([]models.AttendanceMark, error)
	ForDay(ctx context.Context, day string) ([]models.DayAttendanceRecord, error)
	Stats(ctx context.Context, subjectID string) (*models.AttendanceStats, error)
}

type attendanceSubjectLookup interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	Count(ctx context.Context) (int, error)
}

// AttendanceConfig tunes ledger defaults.
type AttendanceConfig struct {
	HistoryLimit int
	Location     *time.Location
	Now          func() time.Time
}

// AttendanceService is the ledger: one mark per subject per day.
type AttendanceService struct {
	repo     attendanceRepository
	subjects attendanceSubjectLookup
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	config   AttendanceConfig
}

// NewAttendanceService constructs the ledger service.
func NewAttendanceService(repo attendanceRepository, subjects attendanceSubjectLookup, cache *CacheService, metrics *MetricsService, logger *zap.Logger, config AttendanceConfig) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = defaultHistoryLimit
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &AttendanceService{repo: repo, subjects: subjects, cache: cache, metrics: metrics, logger: logger, config: config}
}

// Today returns the current calendar day in the configured location.
func (s *AttendanceService) Today() string {
	return s.config.Now().In(s.config.Location).Format(models.DayLayout)
}

// ResolveDay validates a YYYY-MM-DD day; an empty value means today.
func (s *AttendanceService) ResolveDay(day string) (string, error) {
	day = strings.TrimSpace(day)
	if day == "" {
		return s.Today(), nil
	}
	parsed, err := time.Parse(models.DayLayout, day)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be formatted as YYYY-MM-DD")
	}
	return parsed.Format(models.DayLayout), nil
}

// Mark records presence for subjectID on day (today when empty). A repeat for
// the same day leaves the stored mark untouched and reports already_marked.
func (s *AttendanceService) Mark(ctx context.Context, subjectID, day string) (*models.MarkResult, error) {
	day, err := s.ResolveDay(day)
	if err != nil {
		return nil, err
	}

	mark := &models.AttendanceMark{
		SubjectID:  subjectID,
		Day:        day,
		Status:     models.AttendanceStatusPresent,
		RecordedAt: s.config.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, mark); err != nil {
		constraint, ok := database.Violation(err)
		if !ok || constraint != database.ConstraintAttendanceDay {
			return nil, translateWrite(err, "failed to record attendance")
		}

		existing, findErr := s.repo.Find(ctx, subjectID, day)
		if findErr != nil {
			return nil, translateRead(findErr, "attendance mark not found", "failed to load attendance mark")
		}
		s.metrics.RecordMark(string(models.MarkOutcomeAlreadyMarked))
		return &models.MarkResult{Outcome: models.MarkOutcomeAlreadyMarked, Mark: *existing}, nil
	}

	s.cache.Invalidate(ctx, dayReportCacheKey(day), statsCacheKey(subjectID))
	s.metrics.RecordMark(string(models.MarkOutcomeMarked))
	s.logger.Info("attendance marked", zap.String("subject_id", subjectID), zap.String("day", day))
	return &models.MarkResult{Outcome: models.MarkOutcomeMarked, Mark: *mark}, nil
}

// History lists a subject's marks newest first. limit <= 0 uses the
// configured default; larger requests are capped. Unknown or deleted
// subjects have an empty history.
func (s *AttendanceService) History(ctx context.Context, subjectID string, limit int) ([]models.AttendanceMark, error) {
	if limit <= 0 {
		limit = s.config.HistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	marks, err := s.repo.History(ctx, subjectID, limit)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load attendance history")
	}
	return marks, nil
}

// ForDay reports who was marked on day, ordered by external id, with totals
// against the current registry size.
func (s *AttendanceService) ForDay(ctx context.Context, day string) (*models.DayReport, error) {
	day, err := s.ResolveDay(day)
	if err != nil {
		return nil, err
	}

	var cached models.DayReport
	if s.cache.Get(ctx, dayReportCacheKey(day), &cached) {
		return &cached, nil
	}

	records, err := s.repo.ForDay(ctx, day)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load attendance")
	}
	total, err := s.subjects.Count(ctx)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to count subjects")
	}

	absent := total - len(records)
	if absent < 0 {
		absent = 0
	}
	report := &models.DayReport{
		Day:           day,
		Records:       records,
		TotalSubjects: total,
		Present:       len(records),
		Absent:        absent,
	}
	s.cache.Set(ctx, dayReportCacheKey(day), report, 0)
	return report, nil
}

// Stats aggregates a subject's ledger. A subject with no marks gets a zero
// count and nil first/last days.
func (s *AttendanceService) Stats(ctx context.Context, subjectID string) (*models.AttendanceStats, error) {
	if _, err := s.subjects.FindByID(ctx, subjectID); err != nil {
		return nil, translateRead(err, "subject not found", "failed to load subject")
	}

	var cached models.AttendanceStats
	if s.cache.Get(ctx, statsCacheKey(subjectID), &cached) {
		return &cached, nil
	}

	stats, err := s.repo.Stats(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load attendance stats")
	}
	s.cache.Set(ctx, statsCacheKey(subjectID), stats, 0)
	return stats, nil
}
