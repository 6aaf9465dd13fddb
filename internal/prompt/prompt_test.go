package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Default(t *testing.T) {
	set, err := Load("")
	require.NoError(t, err)

	assert.InDelta(t, 0.7, set.Chat.Temperature, 0.0001)
	assert.InDelta(t, 0.5, set.Formula.Temperature, 0.0001)
	assert.InDelta(t, 0.5, set.Figure.Temperature, 0.0001)
	assert.InDelta(t, 0.2, set.EquationAnnotation.Temperature, 0.0001)
	assert.InDelta(t, 0.3, set.LearningPlan.Temperature, 0.0001)
	assert.NotEmpty(t, set.Chat.SystemPrompt)
}

func TestLoad_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	content := `
chat: {system_prompt: "chat", temperature: 0.9}
formula: {system_prompt: "formula"}
figure: {system_prompt: "figure"}
equation_annotation: {system_prompt: "annotate"}
learning_plan: {prompt_template: "Plan for {{.Title}} ({{.Sections}})"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	set, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "chat", set.Chat.SystemPrompt)

	prompt, err := set.RenderLearningPlan(LearningPlanInput{Title: "BERT"})
	require.NoError(t, err)
	assert.Equal(t, "Plan for BERT (Not provided)", prompt)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		errString string
	}{
		{name: "malformed yaml", content: "chat: [", errString: "failed to parse prompts"},
		{name: "missing prompt", content: "chat: {system_prompt: x}", errString: "is required"},
		{
			name: "bad template",
			content: `
chat: {system_prompt: a}
formula: {system_prompt: b}
figure: {system_prompt: c}
equation_annotation: {system_prompt: d}
learning_plan: {prompt_template: "{{.Title"}
`,
			errString: "failed to parse learning plan template",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestSet_RenderLearningPlan(t *testing.T) {
	set, err := Load("")
	require.NoError(t, err)

	prompt, err := set.RenderLearningPlan(LearningPlanInput{
		Title:    "Attention Is All You Need",
		Abstract: "The dominant sequence transduction models...",
		Sections: []string{"Introduction", "Model Architecture"},
		FullText: "full paper text",
	})
	require.NoError(t, err)

	assert.Contains(t, prompt, "Title: Attention Is All You Need")
	assert.Contains(t, prompt, "The dominant sequence transduction models...")
	assert.Contains(t, prompt, "Sections: Introduction, Model Architecture")
	assert.Contains(t, prompt, "full paper text")

	bare, err := set.RenderLearningPlan(LearningPlanInput{Title: "T", Abstract: "A"})
	require.NoError(t, err)
	assert.Contains(t, bare, "Sections: Not provided")
	assert.NotContains(t, bare, "Full text")
}
