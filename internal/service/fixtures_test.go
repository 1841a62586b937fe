package service

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bioattend-api/internal/biometric"
	"github.com/noah-isme/bioattend-api/internal/repository"
	"github.com/noah-isme/bioattend-api/pkg/database"
)

var fixedNow = time.Date(2024, 1, 3, 9, 30, 0, 0, time.UTC)

// irisPNG returns a small PNG whose bytes differ for every seed.
func irisPNG(t *testing.T, seed uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = seed + uint8(i)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type testStack struct {
	db           *sqlx.DB
	subjectRepo  *repository.SubjectRepository
	markRepo     *repository.AttendanceRepository
	subjects     *SubjectService
	attendance   *AttendanceService
	verification *VerificationService
	now          time.Time
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	db, err := database.NewSQLite(database.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = database.Migrate(context.Background(), db)
	require.NoError(t, err)

	stack := &testStack{db: db, now: fixedNow}
	stack.subjectRepo = repository.NewSubjectRepository(db)
	stack.markRepo = repository.NewAttendanceRepository(db)
	intake := biometric.NewIntake(0)
	stack.subjects = NewSubjectService(stack.subjectRepo, intake, nil, nil, nil, nil, nil)
	stack.attendance = NewAttendanceService(stack.markRepo, stack.subjectRepo, nil, nil, nil, AttendanceConfig{
		Location: time.UTC,
		Now:      func() time.Time { return stack.now },
	})
	stack.verification = NewVerificationService(stack.subjectRepo, stack.attendance, nil, intake, nil, nil)
	return stack
}

func (s *testStack) countMarks(t *testing.T, subjectID string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.Get(&n, s.db.Rebind("SELECT COUNT(*) FROM attendance_marks WHERE subject_id = ?"), subjectID))
	return n
}
