package worker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/asaadkhaja99/rabbit-hole/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPool_RunsSubmittedTasks(t *testing.T) {
	pool := NewPool("test", 3, 10, testLogger())
	pool.Start()

	var count atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		require.NoError(t, pool.Submit(context.Background(), func() {
			defer wg.Done()
			count.Add(1)
		}))
	}

	wg.Wait()
	assert.Equal(t, int32(20), count.Load())
	require.NoError(t, pool.Stop(context.Background()))
}

func TestPool_TrySubmitQueueFull(t *testing.T) {
	pool := NewPool("test", 1, 1, testLogger())
	pool.Start()

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.TrySubmit(func() {
		close(started)
		<-release
	}))
	<-started

	// one slot in the queue, then full
	require.NoError(t, pool.TrySubmit(func() {}))
	err := pool.TrySubmit(func() {})
	assert.ErrorIs(t, err, domain.ErrQueueFull)

	close(release)
	require.NoError(t, pool.Stop(context.Background()))
}

func TestPool_SubmitHonoursContext(t *testing.T) {
	pool := NewPool("test", 1, 0, testLogger())
	pool.Start()

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.Submit(context.Background(), func() {
		close(started)
		<-release
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := pool.Submit(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, pool.Stop(context.Background()))
}

func TestPool_RecoversFromPanics(t *testing.T) {
	pool := NewPool("test", 1, 2, testLogger())
	pool.Start()

	done := make(chan struct{})
	require.NoError(t, pool.Submit(context.Background(), func() { panic("boom") }))
	require.NoError(t, pool.Submit(context.Background(), func() { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool did not survive a panicking task")
	}
	require.NoError(t, pool.Stop(context.Background()))
}

func TestPool_StopDrainsQueuedTasks(t *testing.T) {
	pool := NewPool("test", 1, 5, testLogger())

	var count atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, pool.TrySubmit(func() { count.Add(1) }))
	}

	pool.Start()
	require.NoError(t, pool.Stop(context.Background()))
	assert.Equal(t, int32(5), count.Load())

	assert.ErrorIs(t, pool.TrySubmit(func() {}), ErrPoolStopped)
	assert.ErrorIs(t, pool.Submit(context.Background(), func() {}), ErrPoolStopped)
}

func TestPool_StopTimeout(t *testing.T) {
	pool := NewPool("test", 1, 0, testLogger())
	pool.Start()

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.Submit(context.Background(), func() {
		close(started)
		<-release
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := pool.Stop(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not stop in time")

	close(release)
}
