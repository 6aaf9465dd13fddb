package gemini

import (
	"context"
	"iter"
	"time"

	"github.com/asaadkhaja99/rabbit-hole/internal/domain"
	"github.com/asaadkhaja99/rabbit-hole/internal/metrics"
	"github.com/asaadkhaja99/rabbit-hole/internal/provider"
)

// StreamText streams the chat model's answer. The SDK iterator blocks per
// chunk; callers drain it off the request goroutine.
func (c *Client) StreamText(ctx context.Context, req provider.StreamRequest) iter.Seq2[provider.Chunk, error] {
	return func(yield func(provider.Chunk, error) bool) {
		started := time.Now()
		var callErr error
		defer func() {
			metrics.ObserveProviderCall("stream", c.chatModel, started, callErr)
		}()

		contents := toContents(req.Conversation)
		config := buildConfig(req.SystemInstruction, req.Temperature, req.Tools)

		for resp, err := range c.client.Models.GenerateContentStream(ctx, c.chatModel, contents, config) {
			if err != nil {
				callErr = domain.NewProviderError("stream", err)
				yield(provider.Chunk{}, callErr)
				return
			}
			if !yield(provider.Chunk{Text: chunkText(resp)}, nil) {
				return
			}
		}
	}
}
