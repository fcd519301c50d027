package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/kmrl/dochub/constants"
	"github.com/kmrl/dochub/internal/async"
	"github.com/kmrl/dochub/internal/common"
	"github.com/kmrl/dochub/internal/extract"
	"github.com/kmrl/dochub/internal/jobs"
	"github.com/kmrl/dochub/internal/pipeline"
)

// FailurePrefix starts the summary of a failed job.
const FailurePrefix = "An error occurred during processing: "

// Analyzer runs the extraction and analysis pipeline for one document.
type Analyzer interface {
	Run(ctx context.Context, doc extract.Document, progress pipeline.ProgressFunc) (pipeline.Report, error)
}

// Archiver keeps a copy of an original upload.
type Archiver interface {
	Archive(ctx context.Context, name string, data []byte) error
}

// Event is a progress notification for one job.
type Event struct {
	ID       string              `json:"id"`
	Stage    string              `json:"stage"`
	Progress int                 `json:"progress"`
	Status   constants.JobStatus `json:"status"`
	Error    string              `json:"error,omitempty"`
}

// Publisher receives progress events. Implementations must not block.
type Publisher interface {
	Publish(ev Event)
}

// Processor turns a queued upload into a completed or failed job.
type Processor struct {
	logger   *slog.Logger
	store    jobs.Store
	analyzer Analyzer
	events   Publisher
	archiver Archiver
}

type Option func(*Processor)

func WithPublisher(p Publisher) Option {
	return func(proc *Processor) { proc.events = p }
}

func WithArchiver(a Archiver) Option {
	return func(proc *Processor) { proc.archiver = a }
}

func NewProcessor(logger *slog.Logger, store jobs.Store, analyzer Analyzer, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{logger: logger, store: store, analyzer: analyzer}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process implements async.Handler. The upload file is removed whatever the outcome.
func (p *Processor) Process(ctx context.Context, task async.Task) error {
	logger := common.LoggerWith(ctx, p.logger).With("job_id", task.JobID, "file", task.FileName)
	defer p.removeUpload(logger, task.Path)

	job, err := p.store.Get(ctx, task.JobID)
	if err != nil {
		logger.Error("processor.job.load_failed", "error", err)
		return fmt.Errorf("load job: %w", err)
	}

	data, err := os.ReadFile(task.Path)
	if err != nil {
		return p.fail(ctx, logger, job, fmt.Errorf("read upload: %w", err))
	}

	if p.archiver != nil {
		if err := p.archiver.Archive(ctx, task.JobID+"/"+task.FileName, data); err != nil {
			logger.Warn("processor.archive.failed", "error", err)
		}
	}

	doc := extract.Document{Bytes: data, MimeType: detectMIME(task), FileName: task.FileName}
	report, err := p.analyze(ctx, job.ID, doc)
	if err != nil {
		return p.fail(ctx, logger, job, err)
	}

	body, err := json.Marshal(report)
	if err != nil {
		return p.fail(ctx, logger, job, fmt.Errorf("encode report: %w", err))
	}
	if err := p.store.SaveReport(ctx, job.ID, body); err != nil {
		return p.fail(ctx, logger, job, fmt.Errorf("save report: %w", err))
	}

	summary := summaryOf(report)
	job.Status = constants.JobStatusCompleted
	job.Summary = &summary
	job.KeyPoints = report.Strings("keyPoints")
	if job.KeyPoints == nil {
		job.KeyPoints = []string{}
	}
	job.DepartmentSuggestion = &jobs.DepartmentSuggestion{
		Department: string(report.Department()),
		Confidence: report.Confidence(),
		Reasoning:  report.String("reasoning"),
	}
	if err := p.store.Update(ctx, job); err != nil {
		logger.Error("processor.job.update_failed", "error", err)
		return fmt.Errorf("update job: %w", err)
	}

	p.publish(Event{ID: job.ID, Stage: string(pipeline.PhaseFinalizing), Progress: 100, Status: job.Status})
	logger.Info("processor.job.completed", "department", job.DepartmentSuggestion.Department)
	return nil
}

// analyze runs the analyzer, turning a panic into an error so the job can still be
// marked failed.
func (p *Processor) analyze(ctx context.Context, jobID string, doc extract.Document) (report pipeline.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			report, err = nil, fmt.Errorf("analysis panicked: %v", r)
		}
	}()
	return p.analyzer.Run(ctx, doc, func(phase pipeline.Phase, percent int) {
		p.publish(Event{ID: jobID, Stage: string(phase), Progress: percent, Status: constants.JobStatusProcessing})
	})
}

func (p *Processor) fail(ctx context.Context, logger *slog.Logger, job jobs.Job, cause error) error {
	summary := FailurePrefix + cause.Error()
	job.Status = constants.JobStatusFailed
	job.Summary = &summary

	// the run context may already be cancelled or past its deadline
	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.store.Update(uctx, job); err != nil {
		logger.Error("processor.job.update_failed", "error", err)
		return errors.Join(cause, err)
	}

	p.publish(Event{ID: job.ID, Stage: "failed", Status: job.Status, Error: cause.Error()})
	logger.Warn("processor.job.failed", "error", cause, "http_status", common.HTTPStatus(cause))
	return cause
}

func (p *Processor) publish(ev Event) {
	if p.events != nil {
		p.events.Publish(ev)
	}
}

func (p *Processor) removeUpload(logger *slog.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("processor.upload.remove_failed", "path", path, "error", err)
	}
}

func summaryOf(r pipeline.Report) string {
	overview := r.String("overview")
	if overview == "" || overview == "Not mentioned" {
		if detailed := r.String("detailedSummary"); detailed != "" {
			return detailed
		}
	}
	return overview
}

func detectMIME(task async.Task) string {
	if task.MimeType != "" {
		return task.MimeType
	}
	return mime.TypeByExtension(filepath.Ext(task.FileName))
}
