package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/asaadkhaja99/rabbit-hole/internal/domain"
	"github.com/asaadkhaja99/rabbit-hole/internal/metrics"
	"github.com/asaadkhaja99/rabbit-hole/internal/storage"
)

const maxIDAttempts = 5

// ProgressFunc replaces the progress message of the running job
type ProgressFunc func(ctx context.Context, message string) error

// Runner performs the work of one job and returns its JSON result
type Runner interface {
	Run(ctx context.Context, req Request, report ProgressFunc) (json.RawMessage, error)
}

// Dispatcher schedules a queued job for processing
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// Manager owns the job state machine
type Manager struct {
	store      storage.Store
	runner     Runner
	dispatcher Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

var _ Processor = (*Manager)(nil)

// NewManager creates a manager over store. runner may be nil in processes
// that only enqueue and poll.
func NewManager(store storage.Store, runner Runner, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		runner: runner,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetDispatcher sets how enqueued jobs reach a processor
func (m *Manager) SetDispatcher(d Dispatcher) {
	m.dispatcher = d
}

// Enqueue persists a queued job, dispatches it and returns its id.
// It never waits on the provider.
func (m *Manager) Enqueue(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if m.dispatcher == nil {
		return "", errors.New("job dispatcher is not configured")
	}

	id, err := m.allocateID(ctx)
	if err != nil {
		return "", err
	}

	job := newJob(id, req, m.now())
	if err := m.save(ctx, job); err != nil {
		return "", fmt.Errorf("failed to persist job: %w", err)
	}

	m.logger.Info("Job enqueued",
		slog.String("job_id", id),
		slog.String("title", req.Title),
	)

	if err := m.dispatcher.Dispatch(ctx, id); err != nil {
		m.logger.Error("Failed to dispatch job",
			slog.String("job_id", id),
			slog.Any("error", err),
		)
		job.fail(fmt.Sprintf("failed to dispatch job: %v", err), m.now())
		if saveErr := m.save(context.WithoutCancel(ctx), job); saveErr != nil {
			m.logger.Error("Failed to persist dispatch failure",
				slog.String("job_id", id),
				slog.Any("error", saveErr),
			)
		}
		return "", fmt.Errorf("failed to dispatch job %s: %w", id, err)
	}

	return id, nil
}

func (m *Manager) allocateID(ctx context.Context) (string, error) {
	for range maxIDAttempts {
		id := NewID()
		_, err := m.store.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check job id: %w", err)
		}
	}
	return "", fmt.Errorf("failed to allocate a unique job id after %d attempts", maxIDAttempts)
}

// GetStatus returns the current view of a job, or domain.ErrNotFound
func (m *Manager) GetStatus(ctx context.Context, jobID string) (*StatusView, error) {
	job, err := m.load(ctx, jobID)
	if err != nil {
		return nil, err
	}

	view := job.View()
	return &view, nil
}

// Process claims a queued job and runs it to a terminal state. It returns nil
// once the job is finalized, including when the job ends failed.
func (m *Manager) Process(ctx context.Context, jobID string) error {
	if err := ValidateID(jobID); err != nil {
		return err
	}
	if m.runner == nil {
		return errors.New("job runner is not configured")
	}

	job, err := m.claim(ctx, jobID)
	if err != nil {
		return err
	}

	logger := m.logger.With(slog.String("job_id", jobID))
	logger.Info("Processing job")
	start := time.Now()

	result, runErr := m.run(ctx, job, logger)

	if runErr == nil && !json.Valid(result) {
		runErr = errors.New("runner returned an invalid JSON result")
	}

	if runErr != nil {
		job.fail(runErr.Error(), m.now())
	} else {
		job.complete(result, m.now())
	}

	if err := m.save(context.WithoutCancel(ctx), job); err != nil {
		logger.Error("Failed to persist terminal job state",
			slog.String("status", string(job.Status)),
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to finalize job %s: %w", jobID, err)
	}

	if runErr != nil {
		logger.Warn("Job failed",
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", runErr),
		)
	} else {
		logger.Info("Job completed",
			slog.Duration("duration", time.Since(start)),
		)
	}

	return nil
}

// Fail finalizes a job that could not be run. Terminal jobs are left as they are.
func (m *Manager) Fail(ctx context.Context, jobID, message string) error {
	job, err := m.load(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return nil
	}

	job.fail(message, m.now())
	return m.save(ctx, job)
}

// claim moves a queued job to processing
func (m *Manager) claim(ctx context.Context, jobID string) (*Job, error) {
	job, err := m.load(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, domain.NewRetryableError(err)
	}

	if job.Status != StatusQueued {
		m.logger.Warn("Failed to claim job - not queued",
			slog.String("job_id", jobID),
			slog.String("status", string(job.Status)),
		)
		return nil, fmt.Errorf("job %s is %s: %w", jobID, job.Status, domain.ErrJobAlreadyClaimed)
	}

	job.start(ProgressStarted, m.now())
	if err := m.save(ctx, job); err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to claim job: %w", err))
	}

	return job, nil
}

// run invokes the runner, turning a panic into an error
func (m *Manager) run(ctx context.Context, job *Job, logger *slog.Logger) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job runner panicked", slog.Any("panic", r))
			result = nil
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	report := func(ctx context.Context, message string) error {
		job.advance(message, m.now())
		return m.save(ctx, job)
	}

	return m.runner.Run(ctx, job.Request, report)
}

func (m *Manager) load(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	if err := storage.GetJSON(ctx, m.store, jobID, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (m *Manager) save(ctx context.Context, job *Job) error {
	if err := storage.SetJSON(ctx, m.store, job.ID, job); err != nil {
		return err
	}
	metrics.JobTransition(string(job.Status))
	return nil
}
