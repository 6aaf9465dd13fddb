package provider

import (
	"context"
	"iter"
)

var _ Generator = (*limited)(nil)

// limited bounds concurrent synchronous calls to the wrapped generator.
// Streams pass through untouched; the relay pool bounds them.
type limited struct {
	inner Generator
	sem   chan struct{}
}

// NewLimited wraps inner so that at most maxConcurrent synchronous calls run at once
func NewLimited(inner Generator, maxConcurrent int) Generator {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limited{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limited) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *limited) release() { <-l.sem }

func (l *limited) StreamText(ctx context.Context, req StreamRequest) iter.Seq2[Chunk, error] {
	return l.inner.StreamText(ctx, req)
}

func (l *limited) GenerateMultimodal(ctx context.Context, req MultimodalRequest) (*Response, error) {
	if err := l.acquire(ctx); err != nil {
		return nil, err
	}
	defer l.release()
	return l.inner.GenerateMultimodal(ctx, req)
}

func (l *limited) GenerateStructured(ctx context.Context, req StructuredRequest) (*StructuredResponse, error) {
	if err := l.acquire(ctx); err != nil {
		return nil, err
	}
	defer l.release()
	return l.inner.GenerateStructured(ctx, req)
}
