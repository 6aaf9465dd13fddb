package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/asaadkhaja99/rabbit-hole/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// JobMessage is the body published for every dispatched job
type JobMessage struct {
	JobID string `json:"job_id"`
}

// Processor runs one job to a terminal state
type Processor interface {
	Process(ctx context.Context, jobID string) error
}

// Consumer feeds RabbitMQ deliveries to a Processor through a Pool
type Consumer struct {
	processor Processor
	pool      *Pool
	logger    *slog.Logger
}

// NewConsumer creates a consumer; the pool must already be started
func NewConsumer(processor Processor, pool *Pool, logger *slog.Logger) *Consumer {
	return &Consumer{
		processor: processor,
		pool:      pool,
		logger:    logger,
	}
}

// Run dispatches deliveries until ctx is cancelled or the channel closes
func (c *Consumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	c.logger.Info("Message dispatcher started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Message dispatcher stopped - context canceled")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			var msg JobMessage
			if err := json.Unmarshal(delivery.Body, &msg); err != nil {
				c.logger.Error("Failed to parse message JSON",
					slog.Any("error", err),
					slog.String("body", string(delivery.Body)),
				)
				c.nack(delivery, msg.JobID, false)
				continue
			}

			d := delivery
			err := c.pool.Submit(ctx, func() {
				c.handle(context.WithoutCancel(ctx), d, msg.JobID)
			})
			if err != nil {
				c.logger.Info("Message dispatcher stopped while dispatching job",
					slog.String("job_id", msg.JobID),
				)
				c.nack(delivery, msg.JobID, true)
				return
			}
		}
	}
}

func (c *Consumer) handle(ctx context.Context, delivery amqp.Delivery, jobID string) {
	err := c.processor.Process(ctx, jobID)
	if err == nil {
		if ackErr := delivery.Ack(false); ackErr != nil {
			c.logger.Error("Failed to ACK message",
				slog.String("job_id", jobID),
				slog.Any("error", ackErr),
			)
		}
		return
	}

	requeue := shouldRequeue(err)
	c.logger.Warn("Job could not be processed",
		slog.String("job_id", jobID),
		slog.Bool("requeue", requeue),
		slog.Any("error", err),
	)
	c.nack(delivery, jobID, requeue)
}

func (c *Consumer) nack(delivery amqp.Delivery, jobID string, requeue bool) {
	if err := delivery.Nack(false, requeue); err != nil {
		c.logger.Error("Failed to NACK message",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
	}
}

// shouldRequeue reports whether a delivery should go back on the queue
func shouldRequeue(err error) bool {
	switch {
	case errors.Is(err, domain.ErrJobAlreadyClaimed),
		errors.Is(err, domain.ErrInvalidJobID),
		errors.Is(err, domain.ErrNotFound):
		return false
	}

	var retryable *domain.RetryableError
	return errors.As(err, &retryable)
}
