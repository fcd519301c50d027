package llm

import (
	"github.com/kmrl/dochub/constants"
)

// StageSchema returns the JSON schema (draft 2020-12 subset) for one stage payload.
// Every field is optional and unknown fields are allowed.
func StageSchema(stage Stage) map[string]any {
	var props map[string]any
	switch stage {
	case StageClassification:
		props = map[string]any{
			"department":            map[string]any{"type": "string", "enum": constants.DepartmentNames()},
			"confidence":            map[string]any{"type": []string{"string", "number"}},
			"reasoning":             stringProp(),
			"keywords":              stringListProp(),
			"alternativeDepartment": stringProp(),
		}
	case StageSummary:
		props = map[string]any{
			"documentType":     stringProp(),
			"overview":         stringProp(),
			"detailedSummary":  stringProp(),
			"keyPoints":        stringListProp(),
			"technicalDetails": stringProp(),
			"financialInfo":    stringProp(),
			"locations":        stringListProp(),
			"timeline":         stringProp(),
			"stakeholders":     stringListProp(),
		}
	case StagePurpose:
		props = map[string]any{
			"primaryPurpose":    stringProp(),
			"secondaryPurposes": stringListProp(),
			"actionItems": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"action":      stringProp(),
						"responsible": stringProp(),
						"priority":    levelProp([]constants.Level{constants.Critical, constants.High, constants.Medium, constants.Low}),
						"timeframe":   stringProp(),
					},
				},
			},
			"urgencyLevel":      levelProp(constants.UrgencyLevels),
			"urgencyReason":     stringProp(),
			"dependencies":      stringListProp(),
			"expectedOutcome":   stringProp(),
			"riskIfNotActioned": stringProp(),
		}
	case StageDetails:
		props = map[string]any{
			"keyPersons":         stringListProp(),
			"deadline":           stringProp(),
			"complianceRequired": yesNoProp(),
			"complianceDetails":  stringProp(),
			"riskLevel":          levelProp(constants.RiskLevels),
			"riskAssessment":     stringProp(),
			"estimatedCost":      stringProp(),
			"costBreakdown":      stringProp(),
			"vendors":            stringListProp(),
			"equipmentMentioned": stringListProp(),
			"regulatoryBodies":   stringListProp(),
			"tags":               stringListProp(),
			"documentSource":     stringProp(),
			"followUpRequired":   yesNoProp(),
			"archivalImportance": levelProp(constants.RiskLevels),
		}
	default:
		props = map[string]any{}
	}

	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}

func stringProp() map[string]any {
	return map[string]any{"type": "string"}
}

func stringListProp() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}

func levelProp(levels []constants.Level) map[string]any {
	return map[string]any{"type": "string", "enum": constants.LevelNames(levels)}
}

func yesNoProp() map[string]any {
	return map[string]any{"type": "string", "enum": []string{"Yes", "No"}}
}
