// Package pipeline runs one document through text extraction and the four dependent
// analysis stages, producing a merged Report.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kmrl/dochub/internal/common"
	"github.com/kmrl/dochub/internal/extract"
	"github.com/kmrl/dochub/internal/llm"
)

// MinTextRunes is the shortest extracted text worth analysing.
const MinTextRunes = 5

// Phase names a progress milestone.
type Phase string

const (
	PhaseExtracting        Phase = "extracting"
	PhaseClassifying       Phase = "classifying"
	PhaseSummarizing       Phase = "summarizing"
	PhaseExtractingPurpose Phase = "extracting-purpose"
	PhaseExtractingDetails Phase = "extracting-details"
	PhaseFinalizing        Phase = "finalizing"
)

// ProgressFunc is called before each step begins. It must not block for long.
type ProgressFunc func(phase Phase, percent int)

type Orchestrator struct {
	extractor extract.TextExtractor
	completer llm.Completer
	prompts   *llm.PromptBuilder
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Orchestrator)

// WithPromptBuilder replaces the default builder, e.g. to clip very long documents.
func WithPromptBuilder(b *llm.PromptBuilder) Option {
	return func(o *Orchestrator) { o.prompts = b }
}

// WithClock sets the time source for processedAt.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(extractor extract.TextExtractor, completer llm.Completer, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		extractor: extractor,
		completer: completer,
		prompts:   llm.NewPromptBuilder(0),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// runState is owned by a single Run call.
type runState struct {
	doc     extract.Document
	text    string
	prior   llm.Prior
	results []llm.StageResult
	report  Report
}

type step struct {
	phase   Phase
	percent int
	run     func(ctx context.Context, s *runState) error
}

func (o *Orchestrator) steps() []step {
	return []step{
		{PhaseExtracting, 10, o.extractText},
		{PhaseClassifying, 25, o.analyze(llm.StageClassification, func(s *runState, res llm.StageResult) {
			s.prior.Department = res.String("department")
		})},
		{PhaseSummarizing, 50, o.analyze(llm.StageSummary, func(s *runState, res llm.StageResult) {
			s.prior.DetailedSummary = res.String("detailedSummary")
		})},
		{PhaseExtractingPurpose, 75, o.analyze(llm.StagePurpose, nil)},
		{PhaseExtractingDetails, 90, o.analyze(llm.StageDetails, nil)},
		{PhaseFinalizing, 100, o.finalize},
	}
}

// Run executes every step in order. The first error from extraction, a completion call or
// response parsing is returned as is and no partial report is produced.
func (o *Orchestrator) Run(ctx context.Context, doc extract.Document, progress ProgressFunc) (Report, error) {
	logger := common.LoggerWith(ctx, o.logger).With("file", doc.FileName)
	start := time.Now()

	s := &runState{
		doc:   doc,
		prior: llm.Prior{FileType: fileType(doc)},
	}
	for _, st := range o.steps() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if progress != nil {
			progress(st.phase, st.percent)
		}
		logger.Debug("pipeline.stage.start", "phase", st.phase, "progress", st.percent)
		if err := st.run(ctx, s); err != nil {
			logger.Error("pipeline.stage.failed", "phase", st.phase, "error", err,
				"elapsed_ms", time.Since(start).Milliseconds())
			return nil, err
		}
	}

	logger.Info("pipeline.run.ok",
		"department", s.report.String("department"),
		"urgency", s.report.String("urgencyLevel"),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return s.report, nil
}

func (o *Orchestrator) extractText(ctx context.Context, s *runState) error {
	text, err := o.extractor.Extract(ctx, s.doc)
	if err != nil {
		return err
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < MinTextRunes {
		return &common.ExtractionError{FileName: s.doc.FileName, Reason: "insufficient text content"}
	}
	s.text = text
	return nil
}

// analyze builds a step for one model stage. thread copies the outputs later prompts
// depend on into the run state.
func (o *Orchestrator) analyze(stage llm.Stage, thread func(*runState, llm.StageResult)) func(context.Context, *runState) error {
	return func(ctx context.Context, s *runState) error {
		prompt, err := o.prompts.Build(stage, s.text, s.doc.FileName, s.prior)
		if err != nil {
			return fmt.Errorf("build %s prompt: %w", stage, err)
		}
		raw, err := o.completer.Complete(ctx, prompt)
		if err != nil {
			return err
		}
		res, err := llm.ParseResponse(raw)
		if err != nil {
			return err
		}

		if changed := llm.Sanitize(stage, res); len(changed) > 0 {
			o.logger.Debug("pipeline.stage.sanitized", "stage", stage, "fields", changed)
		}
		if err := llm.ValidateStageResult(stage, res); err != nil {
			o.logger.Warn("pipeline.stage.schema_warning", "stage", stage, "error", err)
		}

		s.results = append(s.results, res)
		if thread != nil {
			thread(s, res)
		}
		return nil
	}
}

func (o *Orchestrator) finalize(_ context.Context, s *runState) error {
	report := Report{}
	for _, res := range s.results {
		for k, v := range res {
			report[k] = v
		}
	}
	report[FieldProcessedAt] = o.now().UTC().Format(time.RFC3339)
	report[FieldFileName] = s.doc.FileName
	report[FieldFileType] = s.prior.FileType

	if filled := report.applyDefaults(); len(filled) > 0 {
		o.logger.Debug("pipeline.report.defaults", "fields", filled)
	}
	s.report = report
	return nil
}

func fileType(doc extract.Document) string {
	if mt := strings.TrimSpace(doc.MimeType); mt != "" {
		return mt
	}
	return string(extract.Categorize(doc))
}
