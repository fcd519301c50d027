package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmrl/dochub/constants"
)

func TestBuild_ClassificationEmbedsRubricAndFileType(t *testing.T) {
	b := NewPromptBuilder(0)

	p, err := b.Build(StageClassification, "Invoice for track ballast", "inv.pdf", Prior{FileType: "PDF"})
	require.NoError(t, err)

	assert.Contains(t, p, "File Name: inv.pdf")
	assert.Contains(t, p, "File Type: PDF")
	assert.Contains(t, p, "Invoice for track ballast")
	for _, d := range constants.Departments() {
		assert.Contains(t, p, string(d))
	}
}

func TestBuild_DependentStagesUseDepartment(t *testing.T) {
	b := NewPromptBuilder(0)
	prior := Prior{Department: "Finance", DetailedSummary: "Quarterly invoice for ballast supply."}

	for _, stage := range []Stage{StageSummary, StagePurpose, StageDetails} {
		p, err := b.Build(stage, "body", "a.txt", prior)
		require.NoError(t, err)
		assert.Contains(t, p, "Department: Finance", "stage %s", stage)
	}

	p, err := b.Build(StagePurpose, "body", "a.txt", prior)
	require.NoError(t, err)
	assert.Contains(t, p, "Summary: Quarterly invoice for ballast supply.")
}

func TestBuild_DefaultsWhenPriorEmpty(t *testing.T) {
	b := NewPromptBuilder(0)

	p, err := b.Build(StagePurpose, "body", "a.txt", Prior{})
	require.NoError(t, err)
	assert.Contains(t, p, "Department: General")
	assert.Contains(t, p, "Summary: Not available")
}

func TestBuild_LevelEnums(t *testing.T) {
	b := NewPromptBuilder(0)

	p, err := b.Build(StagePurpose, "body", "a.txt", Prior{})
	require.NoError(t, err)
	assert.Contains(t, p, "Critical, High, Medium, Low")

	p, err = b.Build(StageDetails, "body", "a.txt", Prior{})
	require.NoError(t, err)
	assert.Contains(t, p, "one of: High, Medium, Low")
}

func TestBuild_UnknownStage(t *testing.T) {
	_, err := NewPromptBuilder(0).Build(Stage("sentiment"), "body", "a.txt", Prior{})
	assert.Error(t, err)
}

func TestBuild_ClipsLongText(t *testing.T) {
	b := NewPromptBuilder(10)
	text := strings.Repeat("x", 50)

	p, err := b.Build(StageSummary, text, "a.txt", Prior{})
	require.NoError(t, err)
	assert.Contains(t, p, strings.Repeat("x", 10)+"\n...(truncated)")
	assert.NotContains(t, p, strings.Repeat("x", 11))
}
