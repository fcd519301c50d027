package llm

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/kmrl/dochub/internal/common"
)

// ErrNoJSONObject is the cause of a ParseError when the reply holds no brace-delimited span.
var ErrNoJSONObject = errors.New("no JSON object in reply")

const excerptLimit = 200

// ParseResponse decodes the JSON object embedded in a model reply. The span runs from the
// first '{' to the last '}', so commentary before and after the object is discarded.
// Only syntax is checked here; missing fields are handled when stage results are merged.
func ParseResponse(raw string) (StageResult, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return nil, &common.ParseError{Excerpt: excerpt(raw), Cause: ErrNoJSONObject}
	}

	var out StageResult
	if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil {
		return nil, &common.ParseError{Excerpt: excerpt(raw), Cause: err}
	}
	if out == nil {
		out = StageResult{}
	}
	return out, nil
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= excerptLimit {
		return s
	}
	cut := excerptLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
