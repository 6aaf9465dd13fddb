package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/asaadkhaja99/rabbit-hole/internal/annotate"
	"github.com/asaadkhaja99/rabbit-hole/internal/domain"
	"github.com/asaadkhaja99/rabbit-hole/internal/job"
	"github.com/asaadkhaja99/rabbit-hole/internal/pdf"
	"github.com/asaadkhaja99/rabbit-hole/internal/prompt"
	"github.com/asaadkhaja99/rabbit-hole/internal/relay"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Streamer runs one relay session
type Streamer interface {
	Stream(ctx context.Context, spec relay.Spec, emit relay.EmitFunc) error
}

// Annotator produces an annotated equation image
type Annotator interface {
	Annotate(ctx context.Context, req annotate.Request) (string, error)
}

// JobService enqueues and reports learning-plan jobs
type JobService interface {
	Enqueue(ctx context.Context, req job.Request) (string, error)
	GetStatus(ctx context.Context, jobID string) (*job.StatusView, error)
}

// PDFService manages uploaded PDFs
type PDFService interface {
	Upload(ctx context.Context, filename, displayName string, r io.Reader) (*pdf.UploadResult, error)
	List(ctx context.Context) ([]pdf.Record, error)
	Get(ctx context.Context, filename string) (*pdf.Record, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger        *slog.Logger
	Relay         Streamer
	Prompts       *prompt.Set
	Annotator     Annotator
	Jobs          JobService
	PDFs          PDFService
	MaxUploadSize int64
}

// writeError maps err onto a status code and an {"error": ...} body
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status, message := classify(err)

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		logger.Error("Request failed",
			slog.String("path", c.Request.URL.Path),
			slog.Any("error", err),
		)
	}

	c.JSON(status, gin.H{"error": message})
}

func classify(err error) (int, string) {
	var validation *domain.ValidationError

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Message
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, domain.ErrQueueFull):
		return http.StatusServiceUnavailable, "Too many learning plans in progress, try again later"
	case errors.Is(err, domain.ErrNoImageReturned):
		return http.StatusInternalServerError, "No image returned from model"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

// bindError answers a failed bind with the message registered for the first
// invalid field, or with fallback when the body could not be decoded at all
func bindError(c *gin.Context, err error, fallback string, messages map[string]string) {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			if message, ok := messages[fe.Field()]; ok {
				badRequest(c, message)
				return
			}
		}
	}
	badRequest(c, fallback)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}
