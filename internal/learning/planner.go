// Package learning produces learning plans with grounded research.
package learning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/asaadkhaja99/rabbit-hole/internal/job"
	"github.com/asaadkhaja99/rabbit-hole/internal/prompt"
	"github.com/asaadkhaja99/rabbit-hole/internal/provider"
)

// ProgressResearching is reported while the research call runs
const ProgressResearching = "Running deep research..."

// Planner is the job.Runner that generates a learning plan
type Planner struct {
	generator provider.Generator
	prompts   *prompt.Set
	logger    *slog.Logger
}

var _ job.Runner = (*Planner)(nil)

// NewPlanner creates a planner
func NewPlanner(generator provider.Generator, prompts *prompt.Set, logger *slog.Logger) *Planner {
	return &Planner{
		generator: generator,
		prompts:   prompts,
		logger:    logger,
	}
}

// Run renders the research prompt, calls the provider with web grounding
// and returns the plan as compact JSON
func (p *Planner) Run(ctx context.Context, req job.Request, report job.ProgressFunc) (json.RawMessage, error) {
	text, err := p.prompts.RenderLearningPlan(prompt.LearningPlanInput{
		Title:    req.Title,
		Abstract: req.Abstract,
		FullText: req.FullText,
		Sections: req.Sections,
	})
	if err != nil {
		return nil, err
	}

	if err := report(ctx, ProgressResearching); err != nil {
		return nil, fmt.Errorf("failed to report progress: %w", err)
	}

	start := time.Now()
	resp, err := p.generator.GenerateStructured(ctx, provider.StructuredRequest{
		Prompt:            text,
		SystemInstruction: p.prompts.LearningPlan.SystemPrompt,
		Temperature:       p.prompts.LearningPlan.Temperature,
		Tools:             []provider.Tool{provider.WebSearchTool()},
	})
	if err != nil {
		return nil, err
	}

	plan, err := parsePlan(resp.Text)
	if err != nil {
		return nil, err
	}

	p.logger.Info("Learning plan generated",
		slog.String("title", req.Title),
		slog.Duration("duration", time.Since(start)),
		slog.Int("bytes", len(plan)),
	)

	return plan, nil
}

func parsePlan(text string) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(text)); err != nil {
		return nil, fmt.Errorf("failed to parse learning plan: %w", err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("failed to parse learning plan: empty response")
	}
	return json.RawMessage(buf.Bytes()), nil
}
