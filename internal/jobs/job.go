package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kmrl/dochub/constants"
)

// DepartmentSuggestion is the department chosen for a completed job.
type DepartmentSuggestion struct {
	Department string  `json:"department"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Job tracks one uploaded document through processing.
type Job struct {
	ID                   string                `json:"id"`
	Filename             string                `json:"filename"`
	Status               constants.JobStatus   `json:"status"`
	Summary              *string               `json:"summary,omitempty"`
	KeyPoints            []string              `json:"keyPoints,omitempty"`
	DepartmentSuggestion *DepartmentSuggestion `json:"departmentSuggestion,omitempty"`
	Timestamp            string                `json:"timestamp"`
}

// TimestampLayout is RFC 3339 with fixed-width nanoseconds, so stored
// timestamps order correctly as strings.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// NewJob returns a job in the processing state stamped with now in UTC.
func NewJob(id, filename string, now time.Time) Job {
	return Job{
		ID:        id,
		Filename:  filename,
		Status:    constants.JobStatusProcessing,
		Timestamp: now.UTC().Format(TimestampLayout),
	}
}

// Store persists jobs and their analysis reports.
type Store interface {
	Create(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, error)
	List(ctx context.Context) ([]Job, error)
	// Update replaces the stored job with the same ID.
	Update(ctx context.Context, job Job) error
	SaveReport(ctx context.Context, id string, report json.RawMessage) error
	Report(ctx context.Context, id string) (json.RawMessage, error)
	Ping(ctx context.Context) error
	Close() error
}

const (
	ExampleJobID    = "example-task-1"
	exampleFilename = "example_invoice.pdf"
	exampleSummary  = "This is a sample summary for an initial invoice document."
)

// SeedExample inserts the demonstration job unless it already exists.
func SeedExample(ctx context.Context, s Store, now time.Time) error {
	if _, err := s.Get(ctx, ExampleJobID); err == nil {
		return nil
	}
	summary := exampleSummary
	job := NewJob(ExampleJobID, exampleFilename, now)
	job.Status = constants.JobStatusCompleted
	job.Summary = &summary
	job.KeyPoints = []string{"Initial amount due: $1500", "Vendor: Acme Corp"}
	job.DepartmentSuggestion = &DepartmentSuggestion{
		Department: string(constants.Finance),
		Confidence: 0.95,
		Reasoning:  "Contains financial keywords.",
	}
	return s.Create(ctx, job)
}

func cloneJob(j Job) Job {
	if j.Summary != nil {
		s := *j.Summary
		j.Summary = &s
	}
	if j.KeyPoints != nil {
		j.KeyPoints = append([]string{}, j.KeyPoints...)
	}
	if j.DepartmentSuggestion != nil {
		d := *j.DepartmentSuggestion
		j.DepartmentSuggestion = &d
	}
	return j
}
