package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kmrl/dochub/constants"
	"github.com/kmrl/dochub/internal/common"
	"github.com/kmrl/dochub/internal/jobs"
	"github.com/kmrl/dochub/internal/pipeline"
)

const (
	JobsSheet    = "Jobs"
	ReportsSheet = "Reports"
)

// Service is a tiny façade over the job store that produces XLSX bytes for exports.
type Service struct {
	store  jobs.Store
	logger *slog.Logger
}

func NewService(store jobs.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// ExportJobsXLSX returns a workbook with every job and, for jobs that have one, its report.
func (s *Service) ExportJobsXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	list, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	reports := make(map[string]pipeline.Report, len(list))
	for _, j := range list {
		raw, err := s.store.Report(ctx, j.ID)
		if errors.Is(err, common.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load report %s: %w", j.ID, err)
		}
		var r pipeline.Report
		if err := json.Unmarshal(raw, &r); err != nil {
			s.logger.Warn("export.report.decode_failed", "job_id", j.ID, "error", err)
			continue
		}
		reports[j.ID] = r
	}

	out, err := WriteWorkbook(list, reports)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.xlsx.ok",
		"jobs", len(list),
		"reports", len(reports),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

var reportColumns = []struct {
	header string
	key    string
	width  float64
}{
	{"File Name", pipeline.FieldFileName, 28},
	{"Department", "department", 16},
	{"Document Type", "documentType", 24},
	{"Overview", "overview", 60},
	{"Urgency", "urgencyLevel", 10},
	{"Risk", "riskLevel", 10},
	{"Deadline", "deadline", 22},
	{"Compliance Required", "complianceRequired", 12},
	{"Estimated Cost", "estimatedCost", 18},
	{"Primary Purpose", "primaryPurpose", 48},
	{"Follow-up Required", "followUpRequired", 12},
	{"Archival Importance", "archivalImportance", 12},
	{"Tags", "tags", 30},
	{"Processed At", pipeline.FieldProcessedAt, 22},
}

// WriteWorkbook renders jobs and reports (keyed by job ID) as XLSX bytes.
// A nil list still yields the two sheets with their headers.
func WriteWorkbook(list []jobs.Job, reports map[string]pipeline.Report) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", JobsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(ReportsSheet); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	writeHeaders(f, JobsSheet, []string{"Job ID", "File Name", "Status", "Timestamp", "Department", "Confidence", "Summary", "Key Points"}, headerStyle)

	row := 2
	for _, j := range list {
		write := rowWriter(f, JobsSheet, row)
		write(1, j.ID)
		write(2, j.Filename)
		write(3, string(j.Status))
		write(4, j.Timestamp)
		if d := j.DepartmentSuggestion; d != nil {
			write(5, d.Department)
			write(6, d.Confidence)
		}
		if j.Summary != nil {
			write(7, truncate(*j.Summary, 300))
		}
		write(8, strings.Join(j.KeyPoints, "; "))
		row++
	}
	_ = f.SetColWidth(JobsSheet, "A", "A", 38)
	_ = f.SetColWidth(JobsSheet, "B", "B", 28)
	_ = f.SetColWidth(JobsSheet, "C", "F", 14)
	_ = f.SetColWidth(JobsSheet, "G", "H", 60)

	headers := make([]string, 0, len(reportColumns)+1)
	headers = append(headers, "Job ID")
	for _, c := range reportColumns {
		headers = append(headers, c.header)
	}
	writeHeaders(f, ReportsSheet, headers, headerStyle)

	styles := map[string]int{}
	row = 2
	for _, j := range list {
		r, ok := reports[j.ID]
		if !ok {
			continue
		}
		write := rowWriter(f, ReportsSheet, row)
		write(1, j.ID)
		for i, c := range reportColumns {
			if list := r.Strings(c.key); list != nil {
				write(i+2, strings.Join(list, ", "))
				continue
			}
			write(i+2, truncate(r.String(c.key), 300))
		}
		dept := r.Department()
		styleID, ok := styles[string(dept)]
		if !ok {
			styleID, err = f.NewStyle(&excelize.Style{
				Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{constants.DepartmentColor(dept)}},
			})
			if err != nil {
				return nil, err
			}
			styles[string(dept)] = styleID
		}
		cell, _ := excelize.CoordinatesToCellName(3, row)
		_ = f.SetCellStyle(ReportsSheet, cell, cell, styleID)
		row++
	}
	for i, c := range reportColumns {
		col, _ := excelize.ColumnNumberToName(i + 2)
		_ = f.SetColWidth(ReportsSheet, col, col, c.width)
	}
	_ = f.SetColWidth(ReportsSheet, "A", "A", 38)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeaders(f *excelize.File, sheet string, headers []string, style int) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.SetCellStyle(sheet, "A1", last, style)
}

func rowWriter(f *excelize.File, sheet string, row int) func(col int, v any) {
	return func(col int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
