package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/bioattend-api/internal/models"
	"github.com/noah-isme/bioattend-api/internal/service"
	"github.com/noah-isme/bioattend-api/pkg/response"
)

type attendanceService interface {
	Mark(ctx context.Context, subjectID, day string) (*models.MarkResult, error)
	History(ctx context.Context, subjectID string, limit int) ([]models.AttendanceMark, error)
	ForDay(ctx context.Context, day string) (*models.DayReport, error)
	Stats(ctx context.Context, subjectID string) (*models.AttendanceStats, error)
}

type reportExporter interface {
	DayReport(ctx context.Context, day, format string) (*service.ExportFile, error)
}

// AttendanceHandler exposes the ledger and day reports.
type AttendanceHandler struct {
	attendance attendanceService
	exporter   reportExporter
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance attendanceService, exporter reportExporter) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, exporter: exporter}
}

// Mark godoc
// @Summary Mark a subject present
// @Description Records one mark per subject per day. A repeat returns outcome already_marked with the stored mark.
// @Tags Attendance
// @Produce json
// @Param id path string true "Subject ID"
// @Param date query string false "Day (YYYY-MM-DD), defaults to today"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /subjects/{id}/attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	result, err := h.attendance.Mark(c.Request.Context(), c.Param("id"), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusCreated
	if result.Outcome == models.MarkOutcomeAlreadyMarked {
		status = http.StatusOK
	}
	response.JSON(c, status, result, nil)
}

// History godoc
// @Summary Attendance history for a subject
// @Tags Attendance
// @Produce json
// @Param id path string true "Subject ID"
// @Param limit query int false "Maximum number of days (default 30, max 365)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /subjects/{id}/attendance [get]
func (h *AttendanceHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	marks, err := h.attendance.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, marks, nil)
}

// Stats godoc
// @Summary Attendance statistics for a subject
// @Tags Attendance
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /subjects/{id}/stats [get]
func (h *AttendanceHandler) Stats(c *gin.Context) {
	stats, err := h.attendance.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// ForDay godoc
// @Summary Attendance report for a day
// @Tags Attendance
// @Produce json
// @Param date query string false "Day (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance [get]
func (h *AttendanceHandler) ForDay(c *gin.Context) {
	report, err := h.attendance.ForDay(c.Request.Context(), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report.Records, nil, response.Meta{
		"day":            report.Day,
		"total_subjects": report.TotalSubjects,
		"present":        report.Present,
		"absent":         report.Absent,
	})
}

// Export godoc
// @Summary Download a day report
// @Tags Attendance
// @Produce text/csv
// @Produce application/pdf
// @Param date query string false "Day (YYYY-MM-DD), defaults to today"
// @Param format query string false "csv or pdf" Enums(csv, pdf)
// @Success 200 {file} file
// @Security BearerAuth
// @Router /attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	file, err := h.exporter.DayReport(c.Request.Context(), c.Query("date"), c.DefaultQuery("format", service.ExportFormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
