package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/asaadkhaja99/rabbit-hole/internal/domain"
	"github.com/asaadkhaja99/rabbit-hole/internal/worker"
)

const (
	defaultDispatchAttempts = 3
	defaultDispatchBackoff  = 200 * time.Millisecond
)

// Processor runs a job and finalizes one that could not be run
type Processor interface {
	worker.Processor
	Fail(ctx context.Context, jobID, message string) error
}

// LocalDispatcher runs jobs on an in-process worker pool
type LocalDispatcher struct {
	pool      *worker.Pool
	processor Processor
	attempts  int
	backoff   time.Duration
	logger    *slog.Logger
}

// NewLocalDispatcher creates a dispatcher; the pool must already be started
func NewLocalDispatcher(pool *worker.Pool, processor Processor, logger *slog.Logger) *LocalDispatcher {
	return &LocalDispatcher{
		pool:      pool,
		processor: processor,
		attempts:  defaultDispatchAttempts,
		backoff:   defaultDispatchBackoff,
		logger:    logger,
	}
}

// WithRetry sets how often a retryable processing error is retried and the
// initial delay between attempts, doubled after each one
func (d *LocalDispatcher) WithRetry(attempts int, backoff time.Duration) *LocalDispatcher {
	if attempts > 0 {
		d.attempts = attempts
	}
	if backoff > 0 {
		d.backoff = backoff
	}
	return d
}

// Dispatch queues the job without blocking. The job outlives the request
// that enqueued it.
func (d *LocalDispatcher) Dispatch(ctx context.Context, jobID string) error {
	detached := context.WithoutCancel(ctx)

	return d.pool.TrySubmit(func() {
		d.process(detached, jobID)
	})
}

func (d *LocalDispatcher) process(ctx context.Context, jobID string) {
	logger := d.logger.With(slog.String("job_id", jobID))
	delay := d.backoff

	var err error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		err = d.processor.Process(ctx, jobID)
		if err == nil {
			return
		}

		var retryable *domain.RetryableError
		if !errors.As(err, &retryable) {
			logger.Error("Job processing failed", slog.Any("error", err))
			return
		}

		if attempt < d.attempts {
			logger.Warn("Job processing failed, retrying...",
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", d.attempts),
				slog.Duration("retry_after", delay),
				slog.Any("error", err),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	logger.Error("Job processing failed after all retries",
		slog.Int("attempts", d.attempts),
		slog.Any("error", err),
	)

	if failErr := d.processor.Fail(ctx, jobID, err.Error()); failErr != nil {
		logger.Error("Failed to mark job as failed", slog.Any("error", failErr))
	}
}

// Publisher sends a message to the job queue
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// RabbitDispatcher hands jobs to the worker service over RabbitMQ
type RabbitDispatcher struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewRabbitDispatcher creates a dispatcher publishing through publisher
func NewRabbitDispatcher(publisher Publisher, logger *slog.Logger) *RabbitDispatcher {
	return &RabbitDispatcher{
		publisher: publisher,
		logger:    logger,
	}
}

// Dispatch publishes the job id
func (d *RabbitDispatcher) Dispatch(ctx context.Context, jobID string) error {
	body, err := json.Marshal(worker.JobMessage{JobID: jobID})
	if err != nil {
		return fmt.Errorf("failed to marshal job message: %w", err)
	}

	if err := d.publisher.PublishWithRetry(ctx, body, "application/json"); err != nil {
		return err
	}

	d.logger.Debug("Job published", slog.String("job_id", jobID))
	return nil
}
