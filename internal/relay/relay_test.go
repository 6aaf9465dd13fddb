package relay

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/asaadkhaja99/rabbit-hole/internal/domain"
	"github.com/asaadkhaja99/rabbit-hole/internal/provider"
	"github.com/asaadkhaja99/rabbit-hole/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	text string
	err  error
}

type scriptedGenerator struct {
	steps []step
	block chan struct{}

	mu       sync.Mutex
	requests []provider.StreamRequest
	pulled   int
	stopped  chan struct{}
}

func (g *scriptedGenerator) StreamText(ctx context.Context, req provider.StreamRequest) iter.Seq2[provider.Chunk, error] {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	return func(yield func(provider.Chunk, error) bool) {
		if g.stopped != nil {
			defer close(g.stopped)
		}
		for _, s := range g.steps {
			g.mu.Lock()
			g.pulled++
			g.mu.Unlock()

			if !yield(provider.Chunk{Text: s.text}, s.err) || s.err != nil {
				return
			}
		}
		if g.block != nil {
			select {
			case <-g.block:
			case <-ctx.Done():
				yield(provider.Chunk{}, ctx.Err())
			}
		}
	}
}

func (g *scriptedGenerator) GenerateMultimodal(context.Context, provider.MultimodalRequest) (*provider.Response, error) {
	return nil, errors.New("not used")
}

func (g *scriptedGenerator) GenerateStructured(context.Context, provider.StructuredRequest) (*provider.StructuredResponse, error) {
	return nil, errors.New("not used")
}

type panickingGenerator struct{ scriptedGenerator }

func (g *panickingGenerator) StreamText(context.Context, provider.StreamRequest) iter.Seq2[provider.Chunk, error] {
	return func(yield func(provider.Chunk, error) bool) {
		yield(provider.Chunk{Text: "partial"}, nil)
		panic("sdk exploded")
	}
}

func newTestRelay(t *testing.T, gen provider.Generator) *Relay {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := worker.NewPool("relay-test", 2, 4, logger)
	pool.Start()
	t.Cleanup(func() { pool.Stop(context.Background()) })

	return New(gen, pool, 4, logger)
}

type collector struct {
	mu     sync.Mutex
	frames []Frame
	failAt int
}

func (c *collector) emit(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAt > 0 && len(c.frames)+1 == c.failAt {
		return errors.New("broken pipe")
	}
	c.frames = append(c.frames, f)
	return nil
}

func TestRelay_StreamsInOrderThenDone(t *testing.T) {
	gen := &scriptedGenerator{steps: []step{{text: "Hel"}, {text: ""}, {text: "lo"}, {text: " world"}}}
	r := newTestRelay(t, gen)

	c := &collector{}
	err := r.Stream(context.Background(), Spec{
		Name:              "chat",
		Conversation:      provider.Conversation{provider.UserTurn(provider.TextPart("q"))},
		SystemInstruction: "sys",
		Temperature:       0.7,
		Tools:             []provider.Tool{provider.FileSearchTool("store")},
	}, c.emit)
	require.NoError(t, err)

	assert.Equal(t, []Frame{
		{Text: "Hel"},
		{Text: "lo"},
		{Text: " world"},
		{Done: true},
	}, c.frames)

	require.Len(t, gen.requests, 1)
	assert.Equal(t, "sys", gen.requests[0].SystemInstruction)
	assert.InDelta(t, 0.7, gen.requests[0].Temperature, 0.0001)
	assert.Equal(t, []provider.Tool{provider.FileSearchTool("store")}, gen.requests[0].Tools)
}

func TestRelay_EmptyStreamStillTerminates(t *testing.T) {
	r := newTestRelay(t, &scriptedGenerator{})

	c := &collector{}
	require.NoError(t, r.Stream(context.Background(), Spec{Name: "formula"}, c.emit))
	assert.Equal(t, []Frame{{Done: true}}, c.frames)
}

func TestRelay_ErrorFrameIsTerminal(t *testing.T) {
	gen := &scriptedGenerator{steps: []step{
		{text: "partial "},
		{err: domain.NewProviderError("stream", errors.New("quota exceeded"))},
		{text: "never sent"},
	}}
	r := newTestRelay(t, gen)

	c := &collector{}
	require.NoError(t, r.Stream(context.Background(), Spec{Name: "figure"}, c.emit))

	assert.Equal(t, []Frame{
		{Text: "partial "},
		{Error: "quota exceeded"},
	}, c.frames)
}

func TestRelay_PanicBecomesErrorFrame(t *testing.T) {
	r := newTestRelay(t, &panickingGenerator{})

	c := &collector{}
	require.NoError(t, r.Stream(context.Background(), Spec{Name: "equation"}, c.emit))

	require.Len(t, c.frames, 2)
	assert.Equal(t, Frame{Text: "partial"}, c.frames[0])
	assert.Contains(t, c.frames[1].Error, "sdk exploded")
}

func TestRelay_ClientDisconnectStopsUpstream(t *testing.T) {
	gen := &scriptedGenerator{
		steps:   []step{{text: "one"}},
		block:   make(chan struct{}),
		stopped: make(chan struct{}),
	}
	r := newTestRelay(t, gen)

	ctx, cancel := context.WithCancel(context.Background())
	c := &collector{}

	done := make(chan error, 1)
	go func() {
		done <- r.Stream(ctx, Spec{Name: "chat"}, c.emit)
	}()

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.frames) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("relay did not return after cancellation")
	}

	select {
	case <-gen.stopped:
	case <-time.After(time.Second):
		t.Fatal("upstream iterator was not released")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Equal(t, []Frame{{Text: "one"}}, c.frames, "nothing is written after disconnect")
}

func TestRelay_WriteFailureStopsPulling(t *testing.T) {
	gen := &scriptedGenerator{
		steps:   []step{{text: "a"}, {text: "b"}, {text: "c"}, {text: "d"}},
		block:   make(chan struct{}),
		stopped: make(chan struct{}),
	}
	r := newTestRelay(t, gen)

	c := &collector{failAt: 2}
	err := r.Stream(context.Background(), Spec{Name: "chat"}, c.emit)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")

	select {
	case <-gen.stopped:
	case <-time.After(time.Second):
		t.Fatal("upstream iterator was not released")
	}
	assert.Equal(t, []Frame{{Text: "a"}}, c.frames)
}

func TestRelay_ConcurrentSessionsAreIsolated(t *testing.T) {
	slow := &scriptedGenerator{steps: []step{{text: "slow"}}, block: make(chan struct{})}
	fast := &scriptedGenerator{steps: []step{{text: "fast"}}}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := worker.NewPool("relay-test", 2, 0, logger)
	pool.Start()
	defer pool.Stop(context.Background())

	slowCtx, cancelSlow := context.WithCancel(context.Background())
	defer cancelSlow()
	go New(slow, pool, 1, logger).Stream(slowCtx, Spec{Name: "chat"}, func(Frame) error { return nil })

	c := &collector{}
	done := make(chan error, 1)
	go func() {
		done <- New(fast, pool, 1, logger).Stream(context.Background(), Spec{Name: "formula"}, c.emit)
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("a blocked session starved another one")
	}
	assert.Equal(t, []Frame{{Text: "fast"}, {Done: true}}, c.frames)
}

func TestSSEWriter(t *testing.T) {
	rec := httptest.NewRecorder()

	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.Emit(Frame{Text: "hi \"there\""}))
	require.NoError(t, w.Emit(Frame{Error: "boom"}))
	require.NoError(t, w.Emit(Frame{Done: true}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.True(t, rec.Flushed)

	frames := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n\n"), "\n\n")
	assert.Equal(t, []string{
		`data: {"text":"hi \"there\""}`,
		`data: {"error":"boom"}`,
		`data: {"done":true}`,
	}, frames)
}
