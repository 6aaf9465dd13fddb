// Package job runs learning-plan generation in the background behind a
// polled job record.
package job

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/asaadkhaja99/rabbit-hole/internal/domain"
	"github.com/google/uuid"
)

// Status is the lifecycle state of a job
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further transition is allowed
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

const (
	// ProgressStarted is set when a job is claimed
	ProgressStarted = "Researching prerequisites..."

	defaultProgress = "Analyzing paper..."
	defaultError    = "Unknown error"

	idPrefix = "lp_"
	idLength = 8
)

// Request is the immutable input of a learning-plan job
type Request struct {
	Title    string   `json:"title"`
	Abstract string   `json:"abstract"`
	FullText string   `json:"full_text,omitempty"`
	Sections []string `json:"sections,omitempty"`
}

// Validate rejects requests missing a title or abstract
func (r Request) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return domain.NewValidationError("title", "title is required")
	}
	if strings.TrimSpace(r.Abstract) == "" {
		return domain.NewValidationError("abstract", "abstract is required")
	}
	return nil
}

// Job is the persisted record of one learning-plan generation.
// Progress, Result and Error are populated according to Status only.
type Job struct {
	ID        string          `json:"job_id"`
	Status    Status          `json:"status"`
	Request   Request         `json:"request"`
	Progress  string          `json:"progress,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func newJob(id string, req Request, now time.Time) *Job {
	return &Job{
		ID:        id,
		Status:    StatusQueued,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (j *Job) start(progress string, now time.Time) {
	j.Status = StatusProcessing
	j.Progress = progress
	j.Result = nil
	j.Error = ""
	j.UpdatedAt = now
}

func (j *Job) advance(progress string, now time.Time) {
	j.Progress = progress
	j.UpdatedAt = now
}

func (j *Job) complete(result json.RawMessage, now time.Time) {
	j.Status = StatusComplete
	j.Progress = ""
	j.Result = result
	j.Error = ""
	j.UpdatedAt = now
}

func (j *Job) fail(message string, now time.Time) {
	j.Status = StatusFailed
	j.Progress = ""
	j.Result = nil
	j.Error = message
	j.UpdatedAt = now
}

// StatusView is the point-in-time answer to a status poll
type StatusView struct {
	JobID    string          `json:"job_id"`
	Status   Status          `json:"status"`
	Progress string          `json:"progress,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// View projects the job onto the fields meaningful for its status
func (j *Job) View() StatusView {
	view := StatusView{JobID: j.ID, Status: j.Status}

	switch j.Status {
	case StatusProcessing:
		view.Progress = j.Progress
		if view.Progress == "" {
			view.Progress = defaultProgress
		}
	case StatusComplete:
		view.Result = j.Result
	case StatusFailed:
		view.Error = j.Error
		if view.Error == "" {
			view.Error = defaultError
		}
	}

	return view
}

// NewID returns a fresh job id
func NewID() string {
	u := uuid.New()
	return idPrefix + hex.EncodeToString(u[:])[:idLength]
}

// ValidateID checks the job id format
func ValidateID(id string) error {
	rest, ok := strings.CutPrefix(id, idPrefix)
	if !ok || len(rest) != idLength {
		return fmt.Errorf("%w: %q", domain.ErrInvalidJobID, id)
	}
	if _, err := hex.DecodeString(rest); err != nil {
		return fmt.Errorf("%w: %q", domain.ErrInvalidJobID, id)
	}
	return nil
}
