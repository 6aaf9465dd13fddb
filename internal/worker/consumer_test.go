package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/asaadkhaja99/rabbit-hole/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ackRecord struct {
	tag     uint64
	acked   bool
	requeue bool
}

type fakeAcknowledger struct {
	mu      sync.Mutex
	records []ackRecord
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, ackRecord{tag: tag, acked: true})
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, ackRecord{tag: tag, requeue: requeue})
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func (f *fakeAcknowledger) get(tag uint64) (ackRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.tag == tag {
			return r, true
		}
	}
	return ackRecord{}, false
}

type fakeProcessor struct {
	results map[string]error
}

func (f *fakeProcessor) Process(_ context.Context, jobID string) error {
	return f.results[jobID]
}

func TestConsumer_Run(t *testing.T) {
	processor := &fakeProcessor{results: map[string]error{
		"lp_00000001": nil,
		"lp_00000002": domain.ErrJobAlreadyClaimed,
		"lp_00000003": domain.NewRetryableError(errors.New("store unavailable")),
		"bad":         domain.ErrInvalidJobID,
		"lp_00000005": errors.New("unexpected"),
	}}

	pool := NewPool("consumer", 2, 4, testLogger())
	pool.Start()
	defer pool.Stop(context.Background())

	ack := &fakeAcknowledger{}
	deliveries := make(chan amqp.Delivery, 6)
	bodies := []string{
		`{"job_id":"lp_00000001"}`,
		`{"job_id":"lp_00000002"}`,
		`{"job_id":"lp_00000003"}`,
		`{"job_id":"bad"}`,
		`{"job_id":"lp_00000005"}`,
		`not json`,
	}
	for i, body := range bodies {
		deliveries <- amqp.Delivery{
			Acknowledger: ack,
			DeliveryTag:  uint64(i + 1),
			Body:         []byte(body),
		}
	}
	close(deliveries)

	consumer := NewConsumer(processor, pool, testLogger())
	consumer.Run(context.Background(), deliveries)

	want := map[uint64]ackRecord{
		1: {tag: 1, acked: true},
		2: {tag: 2},
		3: {tag: 3, requeue: true},
		4: {tag: 4},
		5: {tag: 5},
		6: {tag: 6},
	}

	require.Eventually(t, func() bool {
		for tag := range want {
			if _, ok := ack.get(tag); !ok {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)

	for tag, expected := range want {
		got, _ := ack.get(tag)
		assert.Equal(t, expected, got, "delivery %d", tag)
	}
}

func TestShouldRequeue(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "already claimed", err: domain.ErrJobAlreadyClaimed, want: false},
		{name: "not found", err: domain.ErrNotFound, want: false},
		{name: "invalid id", err: domain.ErrInvalidJobID, want: false},
		{name: "retryable", err: domain.NewRetryableError(errors.New("timeout")), want: true},
		{name: "unknown", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldRequeue(tt.err))
		})
	}
}
