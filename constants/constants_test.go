package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeDepartment(t *testing.T) {
	cases := []struct {
		in    string
		want  Department
		match bool
	}{
		{"Finance", Finance, true},
		{"  finance ", Finance, true},
		{"Human Resources", HR, true},
		{"Finance Department", Finance, true},
		{"KMRL Engineering", Engineering, true},
		{"HR", HR, true},
		{"three", Department("three"), false},
		{"Marketing", Department("Marketing"), false},
		{"", General, false},
	}
	for _, tc := range cases {
		got, ok := CanonicalizeDepartment(tc.in)
		assert.Equal(t, tc.want, got, tc.in)
		assert.Equal(t, tc.match, ok, tc.in)
	}
}

func TestDepartmentColorFallback(t *testing.T) {
	assert.NotEqual(t, FallbackColor, DepartmentColor(Finance))
	assert.Equal(t, FallbackColor, DepartmentColor(General))
	assert.Len(t, DepartmentNames(), 8)
}

func TestCanonicalizeLevel(t *testing.T) {
	l, ok := CanonicalizeLevel("high", UrgencyLevels)
	assert.True(t, ok)
	assert.Equal(t, High, l)

	l, ok = CanonicalizeLevel("Medium - routine maintenance", RiskLevels)
	assert.True(t, ok)
	assert.Equal(t, Medium, l)

	_, ok = CanonicalizeLevel("Critical", RiskLevels)
	assert.False(t, ok)
	_, ok = CanonicalizeLevel("", UrgencyLevels)
	assert.False(t, ok)
}

func TestConfidenceScore(t *testing.T) {
	assert.Equal(t, 0.9, ConfidenceScore(High))
	assert.Equal(t, 0.6, ConfidenceScore(Medium))
	assert.Equal(t, 0.3, ConfidenceScore(Low))
	assert.Equal(t, 0.0, ConfidenceScore(Level("unknown")))
}

func TestFileCategories(t *testing.T) {
	assert.True(t, AllowedUpload(".DOCX"))
	assert.True(t, AllowedUpload("md"))
	assert.False(t, AllowedUpload(".exe"))

	assert.Equal(t, IMAGE, MapExtToCategory(".PNG"))
	assert.Equal(t, PDF, MapExtToCategory("pdf"))
	assert.Equal(t, WORD, MapExtToCategory(".doc"))
	assert.Equal(t, TEXT, MapExtToCategory(".csv"))

	_, ok := MapMIMEToCategory("application/octet-stream")
	assert.False(t, ok)
	cat, ok := MapMIMEToCategory("text/plain; charset=utf-8")
	assert.True(t, ok)
	assert.Equal(t, TEXT, cat)
	cat, _ = MapMIMEToCategory("image/jpeg")
	assert.Equal(t, IMAGE, cat)
	cat, _ = MapMIMEToCategory("application/msword")
	assert.Equal(t, WORD, cat)

	assert.Equal(t, "application/msword", WordMIME(".doc"))
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobStatusProcessing.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
}
