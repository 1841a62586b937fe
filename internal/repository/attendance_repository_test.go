package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bioattend-api/internal/models"
	"github.com/noah-isme/bioattend-api/pkg/database"
)

var fixedTime = time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)

func TestAttendanceRepositoryInsertOnce(t *testing.T) {
	db := newSQLite(t)
	subjects := NewSubjectRepository(db)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()
	ada := seedSubject(t, subjects, "Ada", "R1", "aaa")

	first := &models.AttendanceMark{SubjectID: ada.ID, Day: "2024-01-03", RecordedAt: fixedTime}
	require.NoError(t, repo.Insert(ctx, first))
	assert.Equal(t, models.AttendanceStatusPresent, first.Status)

	err := repo.Insert(ctx, &models.AttendanceMark{SubjectID: ada.ID, Day: "2024-01-03", RecordedAt: fixedTime.Add(time.Hour)})
	constraint, ok := database.Violation(err)
	require.True(t, ok)
	assert.Equal(t, database.ConstraintAttendanceDay, constraint)

	stored, err := repo.Find(ctx, ada.ID, "2024-01-03")
	require.NoError(t, err)
	assert.True(t, fixedTime.Equal(stored.RecordedAt))

	err = repo.Insert(ctx, &models.AttendanceMark{SubjectID: "ghost", Day: "2024-01-03"})
	constraint, ok = database.Violation(err)
	require.True(t, ok)
	assert.Equal(t, database.ConstraintAttendanceSubject, constraint)
}

func TestAttendanceRepositoryInsertRejectsUnknownStatus(t *testing.T) {
	db := newSQLite(t)
	subjects := NewSubjectRepository(db)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()
	ada := seedSubject(t, subjects, "Ada", "R1", "aaa")

	err := repo.Insert(ctx, &models.AttendanceMark{SubjectID: ada.ID, Day: "2024-01-03", Status: "late"})
	require.Error(t, err)
	_, ok := database.Violation(err)
	assert.False(t, ok)

	_, err = repo.Find(ctx, ada.ID, "2024-01-03")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestAttendanceRepositoryHistoryAndStats(t *testing.T) {
	db := newSQLite(t)
	subjects := NewSubjectRepository(db)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()
	ada := seedSubject(t, subjects, "Ada", "R1", "aaa")

	stats, err := repo.Stats(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, ada.ID, stats.SubjectID)
	assert.Zero(t, stats.TotalCount)
	assert.Nil(t, stats.FirstDay)

	for _, day := range []string{"2024-01-01", "2024-01-03", "2024-01-02"} {
		require.NoError(t, repo.Insert(ctx, &models.AttendanceMark{SubjectID: ada.ID, Day: day}))
	}

	history, err := repo.History(ctx, ada.ID, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2024-01-03", history[0].Day)
	assert.Equal(t, "2024-01-02", history[1].Day)

	stats, err = repo.Stats(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalCount)
	assert.Equal(t, "2024-01-01", *stats.FirstDay)
	assert.Equal(t, "2024-01-03", *stats.LastDay)
}

func TestAttendanceRepositoryForDay(t *testing.T) {
	db := newSQLite(t)
	subjects := NewSubjectRepository(db)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()
	bob := seedSubject(t, subjects, "Bob", "R2", "bbb")
	ada := seedSubject(t, subjects, "Ada", "R1", "aaa")

	require.NoError(t, repo.Insert(ctx, &models.AttendanceMark{SubjectID: bob.ID, Day: "2024-01-03"}))
	require.NoError(t, repo.Insert(ctx, &models.AttendanceMark{SubjectID: ada.ID, Day: "2024-01-03"}))
	require.NoError(t, repo.Insert(ctx, &models.AttendanceMark{SubjectID: ada.ID, Day: "2024-01-04"}))

	records, err := repo.ForDay(ctx, "2024-01-03")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "R1", records[0].ExternalID)
	assert.Equal(t, "Ada", records[0].DisplayName)
	assert.Equal(t, "R2", records[1].ExternalID)

	none, err := repo.ForDay(ctx, "2023-01-01")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAttendanceRepositoryStatsFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) AS total_count, MIN\\(day\\) AS first_day, MAX\\(day\\) AS last_day FROM attendance_marks WHERE subject_id = \\?").
		WithArgs("s1").
		WillReturnError(errors.New("timeout"))

	_, err := repo.Stats(context.Background(), "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attendance stats")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "bioattend")
	ctx := context.Background()

	var out string
	assert.Error(t, repo.Get(ctx, "k", &out))
	assert.NoError(t, repo.Set(ctx, "k", "v", time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "*"))
	assert.NoError(t, repo.Ping(ctx))
	assert.NoError(t, repo.Close())
	assert.Equal(t, "bioattend:attendance:day:x", repo.key("attendance:day:x"))
}
