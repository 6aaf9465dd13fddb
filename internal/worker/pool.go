// Package worker runs work on bounded goroutine pools and consumes
// learning-plan jobs from RabbitMQ.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/asaadkhaja99/rabbit-hole/internal/domain"
)

// ErrPoolStopped is returned when submitting to a stopped pool
var ErrPoolStopped = errors.New("worker pool stopped")

// Task is a unit of work executed by a pool goroutine
type Task func()

// Pool runs submitted tasks on a fixed number of goroutines
type Pool struct {
	name     string
	size     int
	tasks    chan Task
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// NewPool creates a pool with size workers and a queue of queueSize pending tasks
func NewPool(name string, size, queueSize int, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	return &Pool{
		name:     name,
		size:     size,
		tasks:    make(chan Task, queueSize),
		stopChan: make(chan struct{}),
		logger:   logger.With(slog.String("pool", name)),
	}
}

// Start spawns the worker goroutines
func (p *Pool) Start() {
	p.logger.Info("Spawning worker pool",
		slog.Int("concurrency", p.size),
		slog.Int("queue_size", cap(p.tasks)),
	)

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.workerLoop(i)
	}
}

func (p *Pool) workerLoop(workerNum int) {
	defer p.wg.Done()

	workerName := fmt.Sprintf("%s-%d", p.name, workerNum)

	for {
		select {
		case <-p.stopChan:
			p.drain(workerName)
			return

		case task := <-p.tasks:
			p.run(workerName, task)
		}
	}
}

// drain runs tasks that were queued before Stop was called
func (p *Pool) drain(workerName string) {
	for {
		select {
		case task := <-p.tasks:
			p.run(workerName, task)
		default:
			return
		}
	}
}

func (p *Pool) run(workerName string, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Task panicked",
				slog.String("worker_name", workerName),
				slog.Any("panic", r),
			)
		}
	}()

	task()
}

// Submit queues task, blocking until there is room, ctx ends or the pool stops
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-p.stopChan:
		return ErrPoolStopped
	default:
	}

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopChan:
		return ErrPoolStopped
	}
}

// TrySubmit queues task without blocking and returns domain.ErrQueueFull when
// the queue has no room
func (p *Pool) TrySubmit(task Task) error {
	select {
	case <-p.stopChan:
		return ErrPoolStopped
	default:
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Stop stops accepting work and waits for running and queued tasks, or for ctx
func (p *Pool) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.logger.Info("Stopping worker pool")
		close(p.stopChan)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Worker pool stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker pool %s did not stop in time: %w", p.name, ctx.Err())
	}
}
