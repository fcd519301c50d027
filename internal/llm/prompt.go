package llm

import (
	"fmt"
	"strings"

	"github.com/kmrl/dochub/constants"
)

const organizationContext = "KMRL (Kochi Metro Rail Limited) operates the Kochi Metro in Kerala, India. " +
	"Its departments handle metro operations, maintenance, engineering, safety, administration and passenger services."

// PromptBuilder renders the stage instructions. Each prompt is self-contained: the
// document text and every earlier output a stage depends on are embedded again.
type PromptBuilder struct {
	// MaxTextChars truncates the document text embedded in prompts; 0 keeps it whole.
	MaxTextChars int
}

func NewPromptBuilder(maxTextChars int) *PromptBuilder {
	return &PromptBuilder{MaxTextChars: maxTextChars}
}

// Build renders the prompt for stage. Summary and details prompts use prior.Department,
// the purpose prompt additionally uses prior.DetailedSummary.
func (b *PromptBuilder) Build(stage Stage, text, fileName string, prior Prior) (string, error) {
	text = b.clip(text)
	dept := strings.TrimSpace(prior.Department)
	if dept == "" {
		dept = string(constants.General)
	}

	switch stage {
	case StageClassification:
		return classificationPrompt(text, fileName, prior.FileType), nil
	case StageSummary:
		return summaryPrompt(text, fileName, dept), nil
	case StagePurpose:
		return purposePrompt(text, fileName, dept, prior.DetailedSummary), nil
	case StageDetails:
		return detailsPrompt(text, fileName, dept), nil
	default:
		return "", fmt.Errorf("unknown stage %q", stage)
	}
}

func (b *PromptBuilder) clip(text string) string {
	if b == nil || b.MaxTextChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= b.MaxTextChars {
		return text
	}
	return string(runes[:b.MaxTextChars]) + "\n...(truncated)"
}

func departmentRubric() string {
	var sb strings.Builder
	for _, d := range constants.Departments() {
		sb.WriteString("- ")
		sb.WriteString(string(d))
		sb.WriteString(": ")
		sb.WriteString(constants.DepartmentDescriptions[d])
		sb.WriteString("\n")
	}
	return sb.String()
}

func classificationPrompt(text, fileName, fileType string) string {
	var sb strings.Builder
	sb.WriteString("You are an expert document classifier for KMRL.\n\n")
	sb.WriteString("CONTEXT:\n" + organizationContext + "\n\n")
	fmt.Fprintf(&sb, "DOCUMENT:\nFile Name: %s\nFile Type: %s\nContent:\n%s\n\n", fileName, fileType, text)
	sb.WriteString("TASK:\nDecide which KMRL department this document belongs to, based on its content, context and purpose.\n\n")
	sb.WriteString("DEPARTMENTS (choose exactly one name):\n")
	sb.WriteString(departmentRubric())
	sb.WriteString("\nRespond with a single JSON object and nothing else:\n")
	sb.WriteString(`{
  "department": "one of: ` + strings.Join(constants.DepartmentNames(), ", ") + `",
  "confidence": "High, Medium or Low",
  "reasoning": "why the document belongs to this department, citing its content",
  "keywords": ["terms that drove the decision"],
  "alternativeDepartment": "second most likely department, or None"
}` + "\n\n")
	sb.WriteString("RULES:\n")
	sb.WriteString("- Use Low confidence when the content is unclear or too short.\n")
	sb.WriteString("- Translate Malayalam or Hindi key terms to English in the reasoning.\n")
	return sb.String()
}

func summaryPrompt(text, fileName, department string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a senior analyst in the KMRL %s department.\n\n", department)
	sb.WriteString("CONTEXT:\n" + organizationContext + "\n\n")
	fmt.Fprintf(&sb, "DOCUMENT:\nFile Name: %s\nDepartment: %s\nContent:\n%s\n\n", fileName, department, text)
	sb.WriteString("TASK:\nWrite a thorough summary covering what the document is, its key facts, figures and dates, " +
		"its relevance to metro operations, technical and financial details, timeline and stakeholders.\n\n")
	sb.WriteString("Respond with a single JSON object and nothing else:\n")
	sb.WriteString(`{
  "documentType": "specific type, e.g. Maintenance Report, Safety Circular, Invoice",
  "overview": "2-3 sentence overview",
  "detailedSummary": "4-6 paragraph summary of all important aspects",
  "keyPoints": ["5-8 most important points"],
  "technicalDetails": "technical specifications or procedures, or None mentioned",
  "financialInfo": "costs, budgets or financial impact, or None mentioned",
  "locations": ["stations, depots or areas mentioned"],
  "timeline": "important dates and schedules, or No specific timeline mentioned",
  "stakeholders": ["people, roles, departments or organisations involved"]
}` + "\n\n")
	sb.WriteString("RULES:\n")
	sb.WriteString("- Keep exact numbers, dates and technical terms from the document.\n")
	sb.WriteString("- Translate Malayalam or Hindi content to English.\n")
	sb.WriteString("- Write Not mentioned for information the document does not contain.\n")
	return sb.String()
}

func purposePrompt(text, fileName, department, summary string) string {
	if strings.TrimSpace(summary) == "" {
		summary = "Not available"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a KMRL %s department manager.\n\n", department)
	fmt.Fprintf(&sb, "CONTEXT:\nDocument: %s\nDepartment: %s\nSummary: %s\n\n", fileName, department, summary)
	fmt.Fprintf(&sb, "DOCUMENT CONTENT:\n%s\n\n", text)
	sb.WriteString("TASK:\nIdentify the purpose of the document and every action it requires.\n\n")
	sb.WriteString("Respond with a single JSON object and nothing else:\n")
	sb.WriteString(`{
  "primaryPurpose": "main objective of the document",
  "secondaryPurposes": ["additional objectives"],
  "actionItems": [
    {"action": "required action", "responsible": "role or department", "priority": "High, Medium or Low", "timeframe": "when, if mentioned"}
  ],
  "urgencyLevel": "one of: ` + strings.Join(constants.LevelNames(constants.UrgencyLevels), ", ") + `",
  "urgencyReason": "why this urgency level was assigned",
  "dependencies": ["what must happen first"],
  "expectedOutcome": "result of completing the actions",
  "riskIfNotActioned": "consequences of inaction"
}` + "\n\n")
	sb.WriteString("URGENCY CRITERIA:\n")
	sb.WriteString("- Critical: safety issues, emergencies, system failures, regulatory deadlines\n")
	sb.WriteString("- High: operational disruption, deadlines within 48 hours, significant financial impact\n")
	sb.WriteString("- Medium: regular operations, deadlines within a week, moderate impact\n")
	sb.WriteString("- Low: routine matters, long-term planning, informational documents\n\n")
	sb.WriteString("RULES:\n")
	sb.WriteString("- Base urgency on the document content only.\n")
	sb.WriteString("- Write No deadline specified when there is no deadline.\n")
	return sb.String()
}

func detailsPrompt(text, fileName, department string) string {
	var sb strings.Builder
	sb.WriteString("You are a KMRL compliance and documentation specialist.\n\n")
	fmt.Fprintf(&sb, "DOCUMENT:\nFile: %s\nDepartment: %s\nContent:\n%s\n\n", fileName, department, text)
	sb.WriteString("TASK:\nExtract the additional details relevant to KMRL operations and compliance.\n\n")
	sb.WriteString("Respond with a single JSON object and nothing else:\n")
	sb.WriteString(`{
  "keyPersons": ["names, roles or positions mentioned"],
  "deadline": "specific deadline, or No deadline mentioned",
  "complianceRequired": "Yes or No",
  "complianceDetails": "compliance requirements, or Not applicable",
  "riskLevel": "one of: ` + strings.Join(constants.LevelNames(constants.RiskLevels), ", ") + `",
  "riskAssessment": "why this risk level was assigned",
  "estimatedCost": "cost figures, or No cost mentioned",
  "costBreakdown": "breakdown of costs, or Not provided",
  "vendors": ["external companies or suppliers"],
  "equipmentMentioned": ["equipment, systems or infrastructure"],
  "regulatoryBodies": ["agencies such as CMRS or MoHUA"],
  "tags": ["categorisation tags"],
  "documentSource": "internal, external, vendor or regulatory",
  "followUpRequired": "Yes or No",
  "archivalImportance": "High, Medium or Low"
}` + "\n\n")
	sb.WriteString("RISK CRITERIA:\n")
	sb.WriteString("- High: safety hazards, regulatory non-compliance, significant financial loss, operational shutdown\n")
	sb.WriteString("- Medium: service disruption, moderate financial impact, compliance concerns\n")
	sb.WriteString("- Low: routine operations, minor issues, informational content\n\n")
	sb.WriteString("COMPLIANCE REFERENCES: Commissioner of Metro Rail Safety (CMRS), Ministry of Housing & Urban Affairs (MoHUA), " +
		"local government regulations, environmental compliance, safety standards.\n\n")
	sb.WriteString("RULES:\n")
	sb.WriteString("- Only include information explicitly present in the document.\n")
	sb.WriteString("- Quote financial figures and dates exactly.\n")
	return sb.String()
}
