// Package prompt holds the prompt set and assembles the per-endpoint
// conversations sent to the generation provider.
package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Instruction is a system prompt with its sampling temperature
type Instruction struct {
	SystemPrompt string  `yaml:"system_prompt"`
	Temperature  float32 `yaml:"temperature"`
}

// LearningPlanPrompt holds the learning-plan prompt template
type LearningPlanPrompt struct {
	SystemPrompt   string  `yaml:"system_prompt"`
	PromptTemplate string  `yaml:"prompt_template"`
	Temperature    float32 `yaml:"temperature"`
}

// Set is the complete prompt configuration
type Set struct {
	Chat               Instruction        `yaml:"chat"`
	Formula            Instruction        `yaml:"formula"`
	Figure             Instruction        `yaml:"figure"`
	EquationAnnotation Instruction        `yaml:"equation_annotation"`
	LearningPlan       LearningPlanPrompt `yaml:"learning_plan"`

	learningPlan *template.Template
}

// Load parses the prompt file at path, or the built-in set when path is empty
func Load(path string) (*Set, error) {
	data := defaultPrompts
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompts file: %w", err)
		}
	}
	return Parse(data)
}

// Parse decodes a prompt set from YAML
func Parse(data []byte) (*Set, error) {
	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse prompts: %w", err)
	}

	required := map[string]string{
		"chat.system_prompt":                set.Chat.SystemPrompt,
		"formula.system_prompt":             set.Formula.SystemPrompt,
		"figure.system_prompt":              set.Figure.SystemPrompt,
		"equation_annotation.system_prompt": set.EquationAnnotation.SystemPrompt,
		"learning_plan.prompt_template":     set.LearningPlan.PromptTemplate,
	}
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("prompt %s is required", key)
		}
	}

	tmpl, err := template.New("learning_plan").Option("missingkey=error").Parse(set.LearningPlan.PromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse learning plan template: %w", err)
	}
	set.learningPlan = tmpl

	return &set, nil
}
