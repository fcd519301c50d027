package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmrl/dochub/internal/common"
	"github.com/kmrl/dochub/internal/extract"
	"github.com/kmrl/dochub/internal/llm"
)

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) Extract(context.Context, extract.Document) (string, error) {
	return s.text, s.err
}

// scriptedCompleter replies with the next scripted answer and records every prompt.
type scriptedCompleter struct {
	replies []string
	errAt   int
	err     error
	prompts []string
}

func (c *scriptedCompleter) Complete(_ context.Context, prompt string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	n := len(c.prompts)
	if c.err != nil && n == c.errAt {
		return "", c.err
	}
	if n > len(c.replies) {
		return "{}", nil
	}
	return c.replies[n-1], nil
}

type progressRecorder struct {
	phases   []Phase
	percents []int
}

func (p *progressRecorder) record(phase Phase, percent int) {
	p.phases = append(p.phases, phase)
	p.percents = append(p.percents, percent)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var fixedNow = time.Date(2025, 2, 10, 8, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))

func newOrchestrator(ex extract.TextExtractor, c llm.Completer) *Orchestrator {
	return NewOrchestrator(ex, c, quietLogger(), WithClock(func() time.Time { return fixedNow }))
}

const invoiceText = "Invoice #4521, due 2025-03-01, Finance dept, amount $1200"

var invoiceReplies = []string{
	`{"department":"Finance","confidence":"High","reasoning":"invoice with amount due","keywords":["invoice","amount"]}`,
	`{"documentType":"Invoice","overview":"Invoice 4521 for $1200.","detailedSummary":"Invoice #4521 totals $1200 and is due on 2025-03-01.","keyPoints":["Amount $1200","Due 2025-03-01"]}`,
	`{"primaryPurpose":"Request payment","urgencyLevel":"high","actionItems":[{"action":"Pay invoice","responsible":"Finance","priority":"High","timeframe":"by 2025-03-01"}]}`,
	`{"deadline":"2025-03-01","complianceRequired":"No","riskLevel":"Low","estimatedCost":"$1200","followUpRequired":"Yes"}`,
}

func TestRun_InvoiceScenario(t *testing.T) {
	c := &scriptedCompleter{replies: invoiceReplies}
	o := newOrchestrator(stubExtractor{text: invoiceText}, c)
	rec := &progressRecorder{}

	report, err := o.Run(context.Background(), extract.Document{
		Bytes: []byte(invoiceText), MimeType: "text/plain", FileName: "invoice.txt",
	}, rec.record)
	require.NoError(t, err)

	assert.Equal(t, "Finance", report["department"])
	assert.Contains(t, report.String("deadline"), "2025-03-01")
	assert.Equal(t, "Invoice", report["documentType"])
	assert.Equal(t, "High", report["urgencyLevel"])
	assert.Equal(t, "Low", report["riskLevel"])
	assert.Equal(t, "invoice.txt", report[FieldFileName])
	assert.Equal(t, "text/plain", report[FieldFileType])
	assert.Equal(t, "2025-02-10T03:00:00Z", report[FieldProcessedAt])
	assert.InDelta(t, 0.9, report.Confidence(), 1e-9)

	require.Len(t, c.prompts, 4)
	assert.Contains(t, c.prompts[0], "File Type: text/plain")
	assert.Contains(t, c.prompts[1], "Department: Finance")
	assert.Contains(t, c.prompts[2], "Department: Finance")
	assert.Contains(t, c.prompts[2], "Summary: Invoice #4521 totals $1200 and is due on 2025-03-01.")
	assert.Contains(t, c.prompts[3], "Department: Finance")
	for _, p := range c.prompts {
		assert.Contains(t, p, invoiceText)
	}

	assert.Equal(t, []Phase{
		PhaseExtracting, PhaseClassifying, PhaseSummarizing,
		PhaseExtractingPurpose, PhaseExtractingDetails, PhaseFinalizing,
	}, rec.phases)
	assert.Equal(t, []int{10, 25, 50, 75, 90, 100}, rec.percents)
}

func TestRun_EmptyTextFailsBeforeAnyCompletion(t *testing.T) {
	c := &scriptedCompleter{}
	o := newOrchestrator(extract.NewExtractor(nil, quietLogger()), c)

	report, err := o.Run(context.Background(), extract.Document{MimeType: "text/plain", FileName: "empty.txt"}, nil)
	require.Error(t, err)
	assert.Nil(t, report)

	var ee *common.ExtractionError
	assert.True(t, errors.As(err, &ee))
	assert.Empty(t, c.prompts)
}

func TestRun_TooShortTextIsExtractionError(t *testing.T) {
	c := &scriptedCompleter{}
	o := newOrchestrator(stubExtractor{text: "  ab \n"}, c)

	_, err := o.Run(context.Background(), extract.Document{FileName: "x.txt"}, nil)
	var ee *common.ExtractionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "x.txt", ee.FileName)
	assert.Empty(t, c.prompts)
}

func TestRun_ProseAroundReplyIsDiscarded(t *testing.T) {
	c := &scriptedCompleter{replies: []string{
		"Sure, here is the result: {\"department\":\"Safety\",\"confidence\":\"High\"} Hope that helps!",
	}}
	o := newOrchestrator(stubExtractor{text: "Incident report at Aluva station platform 2"}, c)

	report, err := o.Run(context.Background(), extract.Document{FileName: "incident.txt"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Safety", report["department"])
	assert.Equal(t, "High", report["confidence"])
	assert.Contains(t, c.prompts[1], "Department: Safety")
}

func TestRun_CompletionErrorStopsTheRun(t *testing.T) {
	cause := &common.CompletionError{StatusCode: http.StatusTooManyRequests, Reason: "quota"}
	c := &scriptedCompleter{replies: invoiceReplies, errAt: 2, err: cause}
	o := newOrchestrator(stubExtractor{text: invoiceText}, c)
	rec := &progressRecorder{}

	report, err := o.Run(context.Background(), extract.Document{FileName: "invoice.txt"}, rec.record)
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Same(t, cause, err)
	assert.Len(t, c.prompts, 2)
	assert.Equal(t, PhaseSummarizing, rec.phases[len(rec.phases)-1])
}

func TestRun_ParseErrorAbortsBeforeNextCall(t *testing.T) {
	c := &scriptedCompleter{replies: []string{"I am unable to classify this document."}}
	o := newOrchestrator(stubExtractor{text: invoiceText}, c)

	_, err := o.Run(context.Background(), extract.Document{FileName: "invoice.txt"}, nil)
	var pe *common.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Len(t, c.prompts, 1)
}

func TestRun_ExtractorErrorPassesThrough(t *testing.T) {
	cause := &common.ExtractionError{FileName: "scan.png", Reason: "ocr failed"}
	c := &scriptedCompleter{}
	o := newOrchestrator(stubExtractor{err: cause}, c)

	_, err := o.Run(context.Background(), extract.Document{FileName: "scan.png"}, nil)
	assert.Same(t, cause, err)
	assert.Empty(t, c.prompts)
}

func TestRun_DefaultsForEmptyReplies(t *testing.T) {
	c := &scriptedCompleter{replies: []string{"{}", "{}", "{}", `{"deadline":"","tags":"metro"}`}}
	o := newOrchestrator(stubExtractor{text: "Some readable document body"}, c)

	report, err := o.Run(context.Background(), extract.Document{FileName: "memo.md"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "General", report["department"])
	assert.Equal(t, "General Document", report["documentType"])
	assert.Equal(t, "Not mentioned", report["overview"])
	assert.Equal(t, "Medium", report["urgencyLevel"])
	assert.Equal(t, "Medium", report["riskLevel"])
	assert.Equal(t, "No deadline mentioned", report["deadline"])
	assert.Equal(t, "No", report["complianceRequired"])
	assert.Equal(t, "No cost mentioned", report["estimatedCost"])
	assert.Equal(t, "Low", report["confidence"])
	assert.Equal(t, "Medium", report["archivalImportance"])
	assert.Equal(t, "No", report["followUpRequired"])
	assert.Equal(t, []any{}, report["keyPoints"])
	assert.Equal(t, []any{}, report["actionItems"])
	assert.Equal(t, []any{"metro"}, report["tags"])
	assert.Equal(t, "TEXT", report[FieldFileType])

	assert.Contains(t, c.prompts[1], "Department: General")
	assert.Contains(t, c.prompts[2], "Summary: Not available")
}

func TestRun_LaterStageWinsOnCollision(t *testing.T) {
	c := &scriptedCompleter{replies: []string{
		`{"department":"Legal","tags":["first"]}`,
		`{"overview":"contract"}`,
		`{}`,
		`{"tags":["last"]}`,
	}}
	o := newOrchestrator(stubExtractor{text: "Agreement between KMRL and vendor"}, c)

	report, err := o.Run(context.Background(), extract.Document{FileName: "a.txt"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"last"}, report["tags"])
}

func TestRun_ReportKeepsEveryStageKey(t *testing.T) {
	c := &scriptedCompleter{replies: []string{
		`{"department":"Legal","reasoning":"contract clauses"}`,
		`{"technicalDetails":"standard gauge","financialInfo":"Rs 5 lakh"}`,
		`{"expectedOutcome":"signed agreement"}`,
		`{"complianceDetails":null,"documentSource":"null","financialInfo":null,"vendors":null}`,
	}}
	o := newOrchestrator(stubExtractor{text: "Agreement between KMRL and vendor"}, c)

	report, err := o.Run(context.Background(), extract.Document{FileName: "a.txt"}, nil)
	require.NoError(t, err)

	for _, key := range []string{"department", "reasoning", "technicalDetails", "financialInfo",
		"expectedOutcome", "complianceDetails", "documentSource", "vendors"} {
		assert.Contains(t, report, key)
	}
	assert.Equal(t, "contract clauses", report["reasoning"])
	assert.Equal(t, "standard gauge", report["technicalDetails"])
	assert.Nil(t, report["complianceDetails"])
	assert.Nil(t, report["documentSource"])
	// a later null still overwrites an earlier value
	assert.Nil(t, report["financialInfo"])
	assert.Equal(t, []any{}, report["vendors"])
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &scriptedCompleter{}
	o := newOrchestrator(stubExtractor{text: invoiceText}, c)

	_, err := o.Run(ctx, extract.Document{FileName: "a.txt"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, c.prompts)
}

func TestReportConfidence(t *testing.T) {
	assert.InDelta(t, 0.6, Report{"confidence": "Medium"}.Confidence(), 1e-9)
	assert.InDelta(t, 0.3, Report{"confidence": "unsure"}.Confidence(), 1e-9)
	assert.InDelta(t, 0.72, Report{"confidence": 0.72}.Confidence(), 1e-9)
	assert.Equal(t, "General", string(Report{}.Department()))
	assert.True(t, strings.HasPrefix(string(PhaseExtractingDetails), "extracting"))
}
