package constants

import "strings"

// Level is an ordinal rating used for urgency, risk, confidence and priority.
type Level string

const (
	Critical Level = "Critical"
	High     Level = "High"
	Medium   Level = "Medium"
	Low      Level = "Low"
)

var (
	UrgencyLevels = []Level{Critical, High, Medium, Low}
	RiskLevels    = []Level{High, Medium, Low}
)

var urgencyColors = map[Level]string{
	Critical: "#E74C3C",
	High:     "#E67E22",
	Medium:   "#F39C12",
	Low:      "#27AE60",
}

// UrgencyColor returns the display colour for an urgency level.
func UrgencyColor(l Level) string {
	if c, ok := urgencyColors[l]; ok {
		return c
	}
	return FallbackColor
}

func LevelNames(levels []Level) []string {
	out := make([]string, len(levels))
	for i, l := range levels {
		out[i] = string(l)
	}
	return out
}

// CanonicalizeLevel matches input case-insensitively against allowed.
func CanonicalizeLevel(input string, allowed []Level) (Level, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}
	for _, l := range allowed {
		if normalized == strings.ToLower(string(l)) {
			return l, true
		}
	}
	// "High - contains safety issue"
	for _, l := range allowed {
		if strings.HasPrefix(normalized, strings.ToLower(string(l))) {
			return l, true
		}
	}
	return "", false
}

// ConfidenceScore converts a qualitative confidence into the 0..1 scale used on jobs.
func ConfidenceScore(l Level) float64 {
	switch l {
	case Critical, High:
		return 0.9
	case Medium:
		return 0.6
	case Low:
		return 0.3
	default:
		return 0
	}
}
