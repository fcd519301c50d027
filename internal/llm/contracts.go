package llm

import (
	"context"
	"fmt"
	"strings"
)

// Completer sends a single self-contained prompt to a text-completion model and returns
// the raw reply. Implementations hold no conversation state between calls.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Stage is one of the four sequential analysis calls.
type Stage string

const (
	StageClassification Stage = "classification"
	StageSummary        Stage = "summary"
	StagePurpose        Stage = "purpose"
	StageDetails        Stage = "details"
)

// Stages lists the analysis stages in execution order.
var Stages = []Stage{StageClassification, StageSummary, StagePurpose, StageDetails}

// StageResult is the loosely typed JSON object decoded from one model reply.
type StageResult map[string]any

// String returns the field as a trimmed string, or "" when absent or not textual.
func (r StageResult) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64, bool:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

// Strings returns the field as a string slice, skipping non-textual elements.
// A bare string is returned as a single element.
func (r StageResult) Strings(key string) []string {
	switch v := r[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case []string:
		return v
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return []string{strings.TrimSpace(v)}
	default:
		return nil
	}
}

// Prior carries run metadata and earlier stage outputs into later prompts.
type Prior struct {
	FileType        string
	Department      string
	DetailedSummary string
}
