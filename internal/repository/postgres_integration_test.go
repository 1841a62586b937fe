//go:build integration

package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/noah-isme/bioattend-api/internal/models"
	"github.com/noah-isme/bioattend-api/pkg/config"
	"github.com/noah-isme/bioattend-api/pkg/database"
)

func startPostgres(t *testing.T) config.DatabaseConfig {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "bioattend",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil || container == nil {
		t.Skipf("docker not available, skipping postgres integration test: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return config.DatabaseConfig{
		Host:         host,
		Port:         port.Int(),
		User:         "test",
		Password:     "test",
		Name:         "bioattend",
		SSLMode:      "disable",
		MaxOpenConns: 4,
	}
}

func openPostgres(t *testing.T, cfg config.DatabaseConfig, driver string) *sqlx.DB {
	t.Helper()
	cfg.Driver = driver
	db, err := database.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = database.Migrate(context.Background(), db)
	require.NoError(t, err)
	_, err = db.Exec("TRUNCATE attendance_marks, subjects")
	require.NoError(t, err)
	return db
}

func TestPostgresConstraintsAndCascade(t *testing.T) {
	base := startPostgres(t)

	for _, driver := range []string{config.DriverPostgres, config.DriverPgx} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			db := openPostgres(t, base, driver)
			subjects := NewSubjectRepository(db)
			marks := NewAttendanceRepository(db)

			tmplA := strings.Repeat("a", 64)
			ada := seedSubject(t, subjects, "Ada", "R-001", tmplA)

			err := subjects.Create(ctx, &models.Subject{DisplayName: "Bea", ExternalID: "R-001", Template: strings.Repeat("b", 64)})
			constraint, ok := database.Violation(err)
			require.True(t, ok, "error %v", err)
			assert.Equal(t, database.ConstraintSubjectExternalID, constraint)

			err = subjects.Create(ctx, &models.Subject{DisplayName: "Bea", ExternalID: "R-002", Template: tmplA})
			constraint, ok = database.Violation(err)
			require.True(t, ok)
			assert.Equal(t, database.ConstraintSubjectTemplate, constraint)

			require.NoError(t, marks.Insert(ctx, &models.AttendanceMark{SubjectID: ada.ID, Day: "2024-01-01"}))
			err = marks.Insert(ctx, &models.AttendanceMark{SubjectID: ada.ID, Day: "2024-01-01"})
			constraint, ok = database.Violation(err)
			require.True(t, ok)
			assert.Equal(t, database.ConstraintAttendanceDay, constraint)

			err = marks.Insert(ctx, &models.AttendanceMark{SubjectID: "00000000-0000-0000-0000-000000000000", Day: "2024-01-01"})
			constraint, ok = database.Violation(err)
			require.True(t, ok)
			assert.Equal(t, database.ConstraintAttendanceSubject, constraint)

			require.NoError(t, marks.Insert(ctx, &models.AttendanceMark{SubjectID: ada.ID, Day: "2024-01-03"}))
			require.NoError(t, marks.Insert(ctx, &models.AttendanceMark{SubjectID: ada.ID, Day: "2024-01-02"}))
			stats, err := marks.Stats(ctx, ada.ID)
			require.NoError(t, err)
			assert.Equal(t, 3, stats.TotalCount)
			require.NotNil(t, stats.FirstDay)
			assert.Equal(t, "2024-01-01", *stats.FirstDay)
			assert.Equal(t, "2024-01-03", *stats.LastDay)

			_, removed, err := subjects.Delete(ctx, ada.ID)
			require.NoError(t, err)
			assert.EqualValues(t, 3, removed)

			history, err := marks.History(ctx, ada.ID, 30)
			require.NoError(t, err)
			assert.Empty(t, history)
		})
	}
}
