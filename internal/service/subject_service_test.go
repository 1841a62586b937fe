package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bioattend-api/internal/biometric"
	"github.com/noah-isme/bioattend-api/internal/models"
	appErrors "github.com/noah-isme/bioattend-api/pkg/errors"
	"github.com/noah-isme/bioattend-api/pkg/storage"
)

type mockSubjectRepo struct {
	created   []*models.Subject
	createErr error
	updateErr error
	deleteErr error
	findErr   error
	lastPatch models.SubjectPatch
}

func (m *mockSubjectRepo) Create(ctx context.Context, subject *models.Subject) error {
	if m.createErr != nil {
		return m.createErr
	}
	if subject.ID == "" {
		subject.ID = "generated"
	}
	m.created = append(m.created, subject)
	return nil
}

func (m *mockSubjectRepo) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return &models.Subject{ID: id}, nil
}

func (m *mockSubjectRepo) FindByExternalID(ctx context.Context, externalID string) (*models.Subject, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return &models.Subject{ID: "s1", ExternalID: externalID}, nil
}

func (m *mockSubjectRepo) FindByTemplate(ctx context.Context, template string) (*models.Subject, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return &models.Subject{ID: "s1", Template: template}, nil
}

func (m *mockSubjectRepo) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	return []models.Subject{{ID: "s1"}}, 1, nil
}

func (m *mockSubjectRepo) Update(ctx context.Context, id string, patch models.SubjectPatch) (*models.Subject, error) {
	m.lastPatch = patch
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return &models.Subject{ID: id}, nil
}

func (m *mockSubjectRepo) Delete(ctx context.Context, id string) (*models.Subject, int64, error) {
	if m.deleteErr != nil {
		return nil, 0, m.deleteErr
	}
	return &models.Subject{ID: id, DisplayName: "Ada"}, 3, nil
}

func TestSubjectServiceEnrollValidation(t *testing.T) {
	svc := NewSubjectService(&mockSubjectRepo{}, nil, nil, nil, nil, nil, nil)

	_, err := svc.Enroll(context.Background(), EnrollSubjectRequest{DisplayName: "  ", ExternalID: "R1"}, irisPNG(t, 1))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Enroll(context.Background(), EnrollSubjectRequest{DisplayName: "Ada", ExternalID: "R1"}, []byte("GIF89a....."))
	assert.True(t, errors.Is(err, appErrors.ErrUnsupportedFormat))

	_, err = svc.Enroll(context.Background(), EnrollSubjectRequest{DisplayName: "Ada", ExternalID: "R1"}, nil)
	assert.True(t, errors.Is(err, biometric.ErrEmptyImage))
}

func TestSubjectServiceEnrollMapsConstraintErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want *appErrors.Error
	}{
		{"external id", &pq.Error{Code: "23505", Constraint: "uq_subjects_external_id"}, appErrors.ErrDuplicateExternalID},
		{"template", &pq.Error{Code: "23505", Constraint: "uq_subjects_template"}, appErrors.ErrDuplicateTemplate},
		{"driver failure", errors.New("disk I/O error"), appErrors.ErrStorage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockSubjectRepo{createErr: tc.err}
			svc := NewSubjectService(repo, nil, nil, nil, NewMetricsService(), nil, nil)
			_, err := svc.Enroll(context.Background(), EnrollSubjectRequest{DisplayName: "Ada", ExternalID: "R1"}, irisPNG(t, 1))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want))
			assert.Equal(t, tc.want.Status, appErrors.FromError(err).Status)
		})
	}
}

func TestSubjectServiceUpdatePatch(t *testing.T) {
	repo := &mockSubjectRepo{}
	svc := NewSubjectService(repo, nil, nil, nil, nil, nil, nil)

	_, err := svc.Update(context.Background(), "s1", UpdateSubjectRequest{}, nil)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	empty := ""
	_, err = svc.Update(context.Background(), "s1", UpdateSubjectRequest{DisplayName: &empty}, nil)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	name := "  Grace "
	image := irisPNG(t, 9)
	_, err = svc.Update(context.Background(), "s1", UpdateSubjectRequest{DisplayName: &name}, image)
	require.NoError(t, err)
	require.NotNil(t, repo.lastPatch.DisplayName)
	assert.Equal(t, "Grace", *repo.lastPatch.DisplayName)
	assert.Nil(t, repo.lastPatch.ExternalID)
	want, _ := biometric.DeriveTemplate(image)
	require.NotNil(t, repo.lastPatch.Template)
	assert.Equal(t, want.String(), *repo.lastPatch.Template)

	repo.updateErr = sql.ErrNoRows
	_, err = svc.Update(context.Background(), "missing", UpdateSubjectRequest{DisplayName: &name}, nil)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestSubjectServiceDeleteMessage(t *testing.T) {
	svc := NewSubjectService(&mockSubjectRepo{}, nil, nil, nil, nil, nil, nil)

	result, err := svc.Delete(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.MarksRemoved)
	assert.Equal(t, "Subject Ada and all attendance records deleted", result.Message)

	svc = NewSubjectService(&mockSubjectRepo{deleteErr: sql.ErrNoRows}, nil, nil, nil, nil, nil, nil)
	_, err = svc.Delete(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestSubjectServiceGetByTemplateNormalizes(t *testing.T) {
	svc := NewSubjectService(&mockSubjectRepo{}, nil, nil, nil, nil, nil, nil)
	digest := strings.Repeat("ab", 32)

	subject, err := svc.GetByTemplate(context.Background(), " "+strings.ToUpper(digest)+" ")
	require.NoError(t, err)
	assert.Equal(t, digest, subject.Template)

	_, err = svc.GetByTemplate(context.Background(), "not-a-digest")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	_, err = svc.GetByTemplate(context.Background(), digest[:10])
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestSubjectServiceLookupsNotFound(t *testing.T) {
	svc := NewSubjectService(&mockSubjectRepo{findErr: sql.ErrNoRows}, nil, nil, nil, nil, nil, nil)

	_, err := svc.GetByExternalID(context.Background(), "R9")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	_, err = svc.GetByTemplate(context.Background(), "abc")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	_, err = svc.Get(context.Background(), "x")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	svc = NewSubjectService(&mockSubjectRepo{findErr: errors.New("boom")}, nil, nil, nil, nil, nil, nil)
	_, err = svc.Get(context.Background(), "x")
	assert.True(t, errors.Is(err, appErrors.ErrStorage))
}

func TestSubjectServiceDuplicatesAgainstStorage(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	first, err := stack.subjects.Enroll(ctx, EnrollSubjectRequest{DisplayName: "Ada", ExternalID: "R1"}, irisPNG(t, 1))
	require.NoError(t, err)
	assert.Len(t, first.Template, biometric.TemplateLength)

	_, err = stack.subjects.Enroll(ctx, EnrollSubjectRequest{DisplayName: "Bob", ExternalID: "R1"}, irisPNG(t, 2))
	assert.True(t, errors.Is(err, appErrors.ErrDuplicateExternalID))

	_, err = stack.subjects.Enroll(ctx, EnrollSubjectRequest{DisplayName: "Bob", ExternalID: "R2"}, irisPNG(t, 1))
	assert.True(t, errors.Is(err, appErrors.ErrDuplicateTemplate))

	all, page, err := stack.subjects.List(ctx, models.SubjectFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, 1, page.TotalCount)

	byTemplate, err := stack.subjects.GetByTemplate(ctx, first.Template)
	require.NoError(t, err)
	assert.Equal(t, first.ID, byTemplate.ID)
}

func TestSubjectServiceUpdateAgainstStorage(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	ada, err := stack.subjects.Enroll(ctx, EnrollSubjectRequest{DisplayName: "Ada", ExternalID: "R1"}, irisPNG(t, 1))
	require.NoError(t, err)
	bob, err := stack.subjects.Enroll(ctx, EnrollSubjectRequest{DisplayName: "Bob", ExternalID: "R2"}, irisPNG(t, 2))
	require.NoError(t, err)

	own := "R1"
	updated, err := stack.subjects.Update(ctx, ada.ID, UpdateSubjectRequest{ExternalID: &own}, irisPNG(t, 1))
	require.NoError(t, err)
	assert.Equal(t, ada.Template, updated.Template)

	taken := "R2"
	_, err = stack.subjects.Update(ctx, ada.ID, UpdateSubjectRequest{ExternalID: &taken}, nil)
	assert.True(t, errors.Is(err, appErrors.ErrDuplicateExternalID))

	_, err = stack.subjects.Update(ctx, ada.ID, UpdateSubjectRequest{}, irisPNG(t, 2))
	assert.True(t, errors.Is(err, appErrors.ErrDuplicateTemplate))

	reloaded, err := stack.subjects.Get(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "R2", reloaded.ExternalID)
}

func TestSubjectServiceDeleteCascades(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	ada, err := stack.subjects.Enroll(ctx, EnrollSubjectRequest{DisplayName: "Ada", ExternalID: "R1"}, irisPNG(t, 1))
	require.NoError(t, err)
	for _, day := range []string{"2024-01-01", "2024-01-02"} {
		_, err := stack.attendance.Mark(ctx, ada.ID, day)
		require.NoError(t, err)
	}
	require.Equal(t, 2, stack.countMarks(t, ada.ID))

	result, err := stack.subjects.Delete(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.MarksRemoved)
	assert.Equal(t, 0, stack.countMarks(t, ada.ID))

	_, err = stack.subjects.Get(ctx, ada.ID)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	_, err = stack.subjects.GetByExternalID(ctx, "R1")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	_, err = stack.subjects.GetByTemplate(ctx, ada.Template)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	history, err := stack.attendance.History(ctx, ada.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = stack.subjects.Delete(ctx, ada.ID)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestSubjectServiceArchivesImages(t *testing.T) {
	dir := t.TempDir()
	archive, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)

	stack := newTestStack(t)
	svc := NewSubjectService(stack.subjectRepo, nil, archive, nil, nil, nil, nil)
	ctx := context.Background()

	image := irisPNG(t, 4)
	subject, err := svc.Enroll(ctx, EnrollSubjectRequest{DisplayName: "Ada", ExternalID: "R1"}, image)
	require.NoError(t, err)

	stored, err := os.ReadFile(filepath.Join(dir, "subjects", subject.ID, "iris.png"))
	require.NoError(t, err)
	assert.Equal(t, image, stored)

	_, err = svc.Delete(ctx, subject.ID)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "subjects", subject.ID))
	assert.True(t, os.IsNotExist(err))
}
