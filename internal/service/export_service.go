package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/bioattend-api/internal/models"
	appErrors "github.com/noah-isme/bioattend-api/pkg/errors"
	"github.com/noah-isme/bioattend-api/pkg/export"
)

// Export formats for day reports.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type dayReportSource interface {
	ForDay(ctx context.Context, day string) (*models.DayReport, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportFile is a rendered report ready to be served or written.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders day reports as CSV or PDF.
type ExportService struct {
	reports dayReportSource
	csv     csvRenderer
	pdf     pdfRenderer
	logger  *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(reports dayReportSource, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{reports: reports, csv: csv, pdf: pdf, logger: logger}
}

// DayReport renders the report for day in the requested format.
func (s *ExportService) DayReport(ctx context.Context, day, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	report, err := s.reports.ForDay(ctx, day)
	if err != nil {
		return nil, err
	}
	dataset := dayDataset(report)

	file := &ExportFile{Filename: fmt.Sprintf("attendance-%s.%s", report.Day, format)}
	switch format {
	case ExportFormatPDF:
		file.ContentType = "application/pdf"
		file.Data, err = s.pdf.Render(dataset)
	default:
		file.ContentType = "text/csv"
		file.Data, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	s.logger.Info("attendance report exported", zap.String("day", report.Day), zap.String("format", format), zap.Int("rows", len(dataset.Rows)))
	return file, nil
}

func dayDataset(report *models.DayReport) export.Dataset {
	rows := make([][]string, 0, len(report.Records))
	for i, record := range report.Records {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			record.ExternalID,
			record.DisplayName,
			string(record.Status),
			record.RecordedAt.UTC().Format("15:04:05"),
		})
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Attendance %s", report.Day),
		Summary: fmt.Sprintf("Enrolled %d  Present %d  Absent %d", report.TotalSubjects, report.Present, report.Absent),
		Headers: []string{"No", "External ID", "Name", "Status", "Recorded At (UTC)"},
		Widths:  []float64{12, 40, 78, 25, 35},
		Rows:    rows,
	}
}
