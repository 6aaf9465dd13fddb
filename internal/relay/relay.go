// Package relay turns a provider's incremental output into an ordered frame
// stream toward one client.
//
// Every session ends with exactly one terminal frame: {"done": true} on
// success or {"error": "..."} on failure. Nothing follows an error frame.
// When the client goes away the session stops pulling from the provider and
// writes nothing more.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/asaadkhaja99/rabbit-hole/internal/domain"
	"github.com/asaadkhaja99/rabbit-hole/internal/metrics"
	"github.com/asaadkhaja99/rabbit-hole/internal/provider"
	"github.com/asaadkhaja99/rabbit-hole/internal/worker"
)

// Session outcomes
const (
	OutcomeDone     = "done"
	OutcomeError    = "error"
	OutcomeCanceled = "canceled"
)

// Frame is one unit of the client-facing event stream
type Frame struct {
	Text  string `json:"text,omitempty"`
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`
}

// EmitFunc writes one frame to the client
type EmitFunc func(Frame) error

// Spec parameterizes one relay session. Endpoints differ only in how the
// conversation is assembled.
type Spec struct {
	Name              string
	Conversation      provider.Conversation
	SystemInstruction string
	Temperature       float32
	Tools             []provider.Tool
}

type event struct {
	text string
	err  error
}

// Relay drains provider streams on a bounded pool
type Relay struct {
	generator provider.Generator
	pool      *worker.Pool
	buffer    int
	logger    *slog.Logger
}

// New creates a relay. The pool must be started by the caller.
func New(generator provider.Generator, pool *worker.Pool, buffer int, logger *slog.Logger) *Relay {
	if buffer < 0 {
		buffer = 0
	}
	return &Relay{
		generator: generator,
		pool:      pool,
		buffer:    buffer,
		logger:    logger,
	}
}

// Stream runs one session, calling emit for every frame in arrival order.
// It returns nil when a terminal frame was written, or the reason the client
// could not be served (context cancellation or a failed write).
func (r *Relay) Stream(ctx context.Context, spec Spec, emit EmitFunc) error {
	started := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan event, r.buffer)
	send := func(ev event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	req := provider.StreamRequest{
		Conversation:      spec.Conversation,
		SystemInstruction: spec.SystemInstruction,
		Temperature:       spec.Temperature,
		Tools:             spec.Tools,
	}

	producer := func() {
		defer close(events)
		defer func() {
			if rec := recover(); rec != nil {
				send(event{err: fmt.Errorf("stream panicked: %v", rec)})
			}
		}()

		for chunk, err := range r.generator.StreamText(ctx, req) {
			if err != nil {
				send(event{err: err})
				return
			}
			if chunk.Text == "" {
				continue
			}
			if !send(event{text: chunk.Text}) {
				return
			}
		}
	}

	if err := r.pool.Submit(ctx, producer); err != nil {
		if ctx.Err() != nil {
			r.finish(spec.Name, OutcomeCanceled, started, 0, ctx.Err())
			return ctx.Err()
		}
		return r.fail(spec.Name, started, 0, err, emit)
	}

	frames := 0
	for {
		select {
		case <-ctx.Done():
			r.finish(spec.Name, OutcomeCanceled, started, frames, ctx.Err())
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				if err := emit(Frame{Done: true}); err != nil {
					r.finish(spec.Name, OutcomeCanceled, started, frames, err)
					return err
				}
				r.finish(spec.Name, OutcomeDone, started, frames, nil)
				return nil
			}

			if ev.err != nil {
				return r.fail(spec.Name, started, frames, ev.err, emit)
			}

			if err := emit(Frame{Text: ev.text}); err != nil {
				r.finish(spec.Name, OutcomeCanceled, started, frames, err)
				return err
			}
			frames++
			metrics.RelayFrame(spec.Name)
		}
	}
}

func (r *Relay) fail(name string, started time.Time, frames int, cause error, emit EmitFunc) error {
	if err := emit(Frame{Error: errorMessage(cause)}); err != nil {
		r.finish(name, OutcomeCanceled, started, frames, err)
		return err
	}
	r.finish(name, OutcomeError, started, frames, cause)
	return nil
}

func (r *Relay) finish(name, outcome string, started time.Time, frames int, err error) {
	metrics.RelaySession(name, outcome)

	attrs := []any{
		slog.String("endpoint", name),
		slog.String("outcome", outcome),
		slog.Int("frames", frames),
		slog.Duration("duration", time.Since(started)),
	}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
	}

	if outcome == OutcomeError {
		r.logger.Warn("Stream finished with error", attrs...)
		return
	}
	r.logger.Info("Stream finished", attrs...)
}

// errorMessage strips the provider operation prefix so clients see the cause
func errorMessage(err error) string {
	var pe *domain.ProviderError
	if errors.As(err, &pe) && pe.Err != nil {
		return pe.Err.Error()
	}
	return err.Error()
}
