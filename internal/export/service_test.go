package export

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kmrl/dochub/constants"
	"github.com/kmrl/dochub/internal/jobs"
)

func TestExportJobsXLSX(t *testing.T) {
	ctx := context.Background()
	store := jobs.NewMemoryStore()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, jobs.SeedExample(ctx, store, now))

	pending := jobs.NewJob("p1", "memo.docx", now.Add(time.Hour))
	require.NoError(t, store.Create(ctx, pending))

	report := map[string]any{
		"fileName":     "example_invoice.pdf",
		"department":   "Finance",
		"urgencyLevel": "High",
		"tags":         []string{"invoice", "vendor"},
	}
	body, err := json.Marshal(report)
	require.NoError(t, err)
	require.NoError(t, store.SaveReport(ctx, jobs.ExampleJobID, body))

	out, err := NewService(store, nil).ExportJobsXLSX(ctx)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(JobsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Job ID", rows[0][0])
	assert.Equal(t, jobs.ExampleJobID, rows[1][0])
	assert.Equal(t, string(constants.JobStatusCompleted), rows[1][2])
	assert.Equal(t, "Finance", rows[1][4])
	assert.Equal(t, "p1", rows[2][0])
	assert.Equal(t, string(constants.JobStatusProcessing), rows[2][2])

	reportRows, err := f.GetRows(ReportsSheet)
	require.NoError(t, err)
	require.Len(t, reportRows, 2)
	assert.Equal(t, jobs.ExampleJobID, reportRows[1][0])
	assert.Equal(t, "example_invoice.pdf", reportRows[1][1])
	assert.Equal(t, "Finance", reportRows[1][2])
	assert.Equal(t, "High", reportRows[1][5])
	assert.Contains(t, reportRows[1], "invoice, vendor")
}

func TestWriteWorkbook_Empty(t *testing.T) {
	out, err := WriteWorkbook(nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.Equal(t, []string{JobsSheet, ReportsSheet}, f.GetSheetList())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
}
