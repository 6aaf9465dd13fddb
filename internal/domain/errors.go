package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a PDF record or job cannot be found in the store
	ErrNotFound = errors.New("not found")

	// ErrNoImageReturned is returned when an image generation call succeeds but yields no image part
	ErrNoImageReturned = errors.New("no image returned from model")

	// ErrJobAlreadyClaimed is returned when a job is not in queued status anymore
	ErrJobAlreadyClaimed = errors.New("job already claimed or not in queued status")

	// ErrInvalidJobID is returned when a dispatched job id is malformed
	ErrInvalidJobID = errors.New("invalid job id")

	// ErrQueueFull is returned when the local job queue cannot accept more work
	ErrQueueFull = errors.New("job queue is full")
)

// ValidationError reports a missing or malformed request field.
// It is always raised before any stream is opened or job is created.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new validation error for field
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// ProviderError wraps a failure of the generation provider
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err as a provider failure of op
func NewProviderError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Op: op, Err: err}
}

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
