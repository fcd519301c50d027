package llm

import (
	"strings"

	"github.com/kmrl/dochub/constants"
)

var confidenceLevels = []constants.Level{constants.High, constants.Medium, constants.Low}

// Sanitize turns null-like strings ("null", "undefined") into nil and rewrites categorical
// values onto their canonical spelling, e.g. "finance dept" becomes "Finance" and "HIGH"
// becomes "High". Keys are never removed; nil and unmappable values are left for the
// defaults applied at merge time. It returns the keys it changed.
func Sanitize(stage Stage, res StageResult) []string {
	var changed []string
	for k, v := range res {
		if s, ok := v.(string); ok && isNullish(s) {
			res[k] = nil
			changed = append(changed, k)
		}
	}

	set := func(key string, value any) {
		if res[key] != value {
			res[key] = value
			changed = append(changed, key)
		}
	}

	switch stage {
	case StageClassification:
		if raw, ok := res["department"].(string); ok {
			if d, matched := constants.CanonicalizeDepartment(raw); matched {
				set("department", string(d))
			}
		}
		if raw, ok := res["alternativeDepartment"].(string); ok {
			if d, matched := constants.CanonicalizeDepartment(raw); matched {
				set("alternativeDepartment", string(d))
			}
		}
		canonicalLevel(res, "confidence", confidenceLevels, set)
	case StagePurpose:
		canonicalLevel(res, "urgencyLevel", constants.UrgencyLevels, set)
		if items, ok := res["actionItems"].([]any); ok {
			for _, item := range items {
				obj, ok := item.(map[string]any)
				if !ok {
					continue
				}
				if raw, ok := obj["priority"].(string); ok {
					if l, matched := constants.CanonicalizeLevel(raw, constants.UrgencyLevels); matched {
						obj["priority"] = string(l)
					}
				}
			}
		}
	case StageDetails:
		canonicalLevel(res, "riskLevel", constants.RiskLevels, set)
		canonicalLevel(res, "archivalImportance", constants.RiskLevels, set)
		canonicalYesNo(res, "complianceRequired", set)
		canonicalYesNo(res, "followUpRequired", set)
	}
	return changed
}

func canonicalLevel(res StageResult, key string, allowed []constants.Level, set func(string, any)) {
	raw, ok := res[key].(string)
	if !ok {
		return
	}
	if l, matched := constants.CanonicalizeLevel(raw, allowed); matched {
		set(key, string(l))
	}
}

func canonicalYesNo(res StageResult, key string, set func(string, any)) {
	switch v := res[key].(type) {
	case bool:
		if v {
			set(key, "Yes")
		} else {
			set(key, "No")
		}
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		switch {
		case s == "true" || strings.HasPrefix(s, "yes") || s == "y":
			set(key, "Yes")
		case s == "false" || strings.HasPrefix(s, "no") || s == "n":
			set(key, "No")
		}
	}
}

func isNullish(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "null", "nil", "undefined":
		return true
	}
	return false
}
