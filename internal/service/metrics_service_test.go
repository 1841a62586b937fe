package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceCounters(t *testing.T) {
	m := NewMetricsService()

	m.RecordEnrollment("enrolled")
	m.RecordEnrollment("DUPLICATE_TEMPLATE")
	m.RecordVerification("recognized")
	m.RecordMark("already_marked")
	m.RecordCacheOperation(true, time.Millisecond)
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/verify", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `bioattend_enrollments_total{result="enrolled"} 1`)
	assert.Contains(t, body, `bioattend_enrollments_total{result="DUPLICATE_TEMPLATE"} 1`)
	assert.Contains(t, body, `bioattend_verifications_total{result="recognized"} 1`)
	assert.Contains(t, body, `bioattend_attendance_marks_total{outcome="already_marked"} 1`)
	assert.Contains(t, body, `cache_lookups_total{result="hit"} 1`)
	assert.Contains(t, body, "http_requests_total")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.RecordEnrollment("enrolled")
	m.RecordMark("marked")
	m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
