package pipeline

import (
	"strings"

	"github.com/kmrl/dochub/constants"
)

// Report is the merged output of one run: the union of the four stage payloads plus run
// metadata. Later stages overwrite earlier ones on key collision.
type Report map[string]any

const (
	FieldProcessedAt = "processedAt"
	FieldFileName    = "fileName"
	FieldFileType    = "fileType"
)

var stringDefaults = map[string]string{
	"department":         string(constants.General),
	"documentType":       "General Document",
	"overview":           "Not mentioned",
	"urgencyLevel":       string(constants.Medium),
	"riskLevel":          string(constants.Medium),
	"deadline":           "No deadline mentioned",
	"complianceRequired": "No",
	"estimatedCost":      "No cost mentioned",
	"confidence":         string(constants.Low),
	"archivalImportance": string(constants.Medium),
	"followUpRequired":   "No",
}

var listFields = []string{
	"keywords",
	"keyPoints",
	"locations",
	"stakeholders",
	"secondaryPurposes",
	"actionItems",
	"dependencies",
	"keyPersons",
	"vendors",
	"equipmentMentioned",
	"regulatoryBodies",
	"tags",
}

// applyDefaults fills absent or blank fields and returns the keys it filled.
func (r Report) applyDefaults() []string {
	var filled []string
	for key, def := range stringDefaults {
		switch v := r[key].(type) {
		case nil:
		case string:
			if strings.TrimSpace(v) != "" {
				continue
			}
		default:
			// numbers and booleans are kept as the model sent them
			continue
		}
		r[key] = def
		filled = append(filled, key)
	}
	for _, key := range listFields {
		switch r[key].(type) {
		case []any, []string:
			continue
		case string:
			// a bare string becomes a one-element list
			if s := strings.TrimSpace(r[key].(string)); s != "" {
				r[key] = []any{s}
				continue
			}
		}
		r[key] = []any{}
		filled = append(filled, key)
	}
	return filled
}

// String returns a textual field, or "" when absent.
func (r Report) String(key string) string {
	if s, ok := r[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// Strings returns a list field, skipping non-string elements.
func (r Report) Strings(key string) []string {
	switch v := r[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Department returns the classified department, General when unset.
func (r Report) Department() constants.Department {
	if d := r.String("department"); d != "" {
		return constants.Department(d)
	}
	return constants.General
}

// Confidence converts the classification confidence to the 0..1 scale. Numeric values are
// passed through, qualitative ones use constants.ConfidenceScore.
func (r Report) Confidence() float64 {
	switch v := r["confidence"].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		l, ok := constants.CanonicalizeLevel(v, constants.UrgencyLevels)
		if !ok {
			return constants.ConfidenceScore(constants.Low)
		}
		return constants.ConfidenceScore(l)
	default:
		return constants.ConfidenceScore(constants.Low)
	}
}
