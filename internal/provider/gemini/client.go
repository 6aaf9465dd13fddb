// Package gemini implements the provider port on top of the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/asaadkhaja99/rabbit-hole/internal/domain"
	"github.com/asaadkhaja99/rabbit-hole/internal/metrics"
	"github.com/asaadkhaja99/rabbit-hole/internal/provider"
)

var (
	_ provider.Generator = (*Client)(nil)
	_ provider.Indexer   = (*Client)(nil)
)

// Config selects the models used per call kind
type Config struct {
	APIKey        string
	ChatModel     string
	ImageModel    string
	ResearchModel string
}

// Client talks to the Gemini API.
// Streaming calls use the chat model, multimodal calls the image model and
// structured calls the research model.
type Client struct {
	client        *genai.Client
	chatModel     string
	imageModel    string
	researchModel string
	logger        *slog.Logger
}

// NewClient creates a Gemini client using the official SDK
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: empty api key")
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Client{
		client:        c,
		chatModel:     cfg.ChatModel,
		imageModel:    cfg.ImageModel,
		researchModel: cfg.ResearchModel,
		logger:        logger,
	}, nil
}

// ValidateModels checks that every configured model is visible to the key.
// Failures are logged only; generation calls surface real errors later.
func (c *Client) ValidateModels(ctx context.Context) {
	seen := map[string]bool{}
	for _, model := range []string{c.chatModel, c.imageModel, c.researchModel} {
		if model == "" || seen[model] {
			continue
		}
		seen[model] = true

		name := model
		if !strings.HasPrefix(name, "models/") {
			name = "models/" + name
		}
		if _, err := c.client.Models.Get(ctx, name, nil); err != nil {
			c.logger.Warn("Gemini model validation failed (proceeding anyway)",
				slog.String("model", model),
				slog.Any("error", err),
			)
			continue
		}
		c.logger.Debug("Gemini model validation success", slog.String("model", model))
	}
}

func (c *Client) GenerateMultimodal(ctx context.Context, req provider.MultimodalRequest) (*provider.Response, error) {
	started := time.Now()

	config := buildConfig(req.SystemInstruction, req.Temperature, nil)
	for _, m := range req.ResponseModalities {
		config.ResponseModalities = append(config.ResponseModalities, string(m))
	}
	if req.AspectRatio != "" {
		config.ImageConfig = &genai.ImageConfig{AspectRatio: req.AspectRatio}
	}

	contents := []*genai.Content{{
		Role:  string(genai.RoleUser),
		Parts: toParts(req.Parts),
	}}

	resp, err := c.client.Models.GenerateContent(ctx, c.imageModel, contents, config)
	metrics.ObserveProviderCall("multimodal", c.imageModel, started, err)
	if err != nil {
		return nil, domain.NewProviderError("generate multimodal", err)
	}

	return fromResponse(resp), nil
}

func (c *Client) GenerateStructured(ctx context.Context, req provider.StructuredRequest) (*provider.StructuredResponse, error) {
	started := time.Now()

	config := buildConfig(req.SystemInstruction, req.Temperature, req.Tools)
	config.ResponseMIMEType = "application/json"

	contents := []*genai.Content{{
		Role:  string(genai.RoleUser),
		Parts: []*genai.Part{{Text: req.Prompt}},
	}}

	resp, err := c.client.Models.GenerateContent(ctx, c.researchModel, contents, config)
	if err != nil {
		metrics.ObserveProviderCall("structured", c.researchModel, started, err)
		return nil, domain.NewProviderError("generate structured", err)
	}

	text, err := getResponseText(resp)
	metrics.ObserveProviderCall("structured", c.researchModel, started, err)
	if err != nil {
		return nil, domain.NewProviderError("generate structured", err)
	}

	if len(resp.Candidates) > 0 {
		c.logSearchUsage(resp.Candidates[0].GroundingMetadata)
	}

	return &provider.StructuredResponse{Text: cleanJSONBlock(text)}, nil
}

func (c *Client) logSearchUsage(meta *genai.GroundingMetadata) {
	if meta == nil {
		return
	}

	query := ""
	if len(meta.WebSearchQueries) > 0 {
		query = meta.WebSearchQueries[0]
	}
	c.logger.Info("Gemini: Google Search used",
		slog.Int("snippets", len(meta.GroundingChunks)),
		slog.String("search_query", query),
	)
}
