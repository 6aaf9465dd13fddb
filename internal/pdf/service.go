// Package pdf keeps the bookkeeping of uploaded papers and their retrieval
// stores.
package pdf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/asaadkhaja99/rabbit-hole/internal/domain"
	"github.com/asaadkhaja99/rabbit-hole/internal/provider"
	"github.com/asaadkhaja99/rabbit-hole/internal/storage"
)

const (
	StatusReady      = "ready"
	StatusProcessing = "processing"

	// IndexingMessage accompanies uploads still being indexed when the wait ends
	IndexingMessage = "File is being indexed, queries will work once ready"
)

// Record is the stored metadata of one uploaded PDF
type Record struct {
	Filename          string    `json:"filename"`
	DisplayName       string    `json:"display_name"`
	FileSearchStoreID string    `json:"file_search_store_id"`
	FileID            string    `json:"file_id,omitempty"`
	Status            string    `json:"status"`
	UploadTime        time.Time `json:"upload_time"`
}

// UploadResult is the record plus an optional message for the client
type UploadResult struct {
	Record
	Message string `json:"message,omitempty"`
}

// Config bounds the indexing wait
type Config struct {
	UploadDir    string
	IndexWait    time.Duration
	PollInterval time.Duration
}

// Service uploads PDFs into retrieval stores and records them
type Service struct {
	indexer provider.Indexer
	store   storage.Store
	config  Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a PDF service
func NewService(indexer provider.Indexer, store storage.Store, config Config, logger *slog.Logger) *Service {
	if config.UploadDir == "" {
		config.UploadDir = filepath.Join(os.TempDir(), "rabbit-hole")
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Second
	}

	return &Service{
		indexer: indexer,
		store:   store,
		config:  config,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Upload indexes the PDF read from r into a new retrieval store. When
// indexing outlasts the configured wait the record is saved as processing.
func (s *Service) Upload(ctx context.Context, filename, displayName string, r io.Reader) (*UploadResult, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "." || name == string(filepath.Separator) || !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return nil, domain.NewValidationError("file", "Only PDF files are supported")
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = name
	}

	logger := s.logger.With(slog.String("filename", name))

	storeName, err := s.indexer.CreateStore(ctx, displayName)
	if err != nil {
		return nil, fmt.Errorf("failed to upload PDF: %w", err)
	}

	path, err := s.spool(name, r)
	if err != nil {
		return nil, fmt.Errorf("failed to upload PDF: %w", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to remove spooled upload",
				slog.String("path", path),
				slog.Any("error", err),
			)
		}
	}()

	op, err := s.indexer.Upload(ctx, storeName, path, displayName)
	if err != nil {
		return nil, fmt.Errorf("failed to upload PDF: %w", err)
	}

	op, err = s.waitForIndex(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("failed to upload PDF: %w", err)
	}
	if op.Err != "" {
		return nil, fmt.Errorf("failed to upload PDF: %w",
			domain.NewProviderError("index document", errors.New(op.Err)))
	}

	result := &UploadResult{
		Record: Record{
			Filename:          name,
			DisplayName:       displayName,
			FileSearchStoreID: storeName,
			Status:            StatusProcessing,
			UploadTime:        s.now(),
		},
	}
	if op.Done {
		result.Status = StatusReady
		result.FileID = op.DocumentName
	} else {
		result.Message = IndexingMessage
	}

	if err := storage.SetJSON(ctx, s.store, name, result.Record); err != nil {
		return nil, fmt.Errorf("failed to save PDF record: %w", err)
	}

	logger.Info("PDF uploaded",
		slog.String("file_search_store_id", storeName),
		slog.String("status", result.Status),
	)

	return result, nil
}

// spool writes the upload to a unique file under the upload dir
func (s *Service) spool(name string, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.config.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	f, err := os.CreateTemp(s.config.UploadDir, "*-"+name)
	if err != nil {
		return "", fmt.Errorf("failed to create spool file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write spool file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close spool file: %w", err)
	}

	return f.Name(), nil
}

// waitForIndex polls op until it is done or the wait ceiling passes
func (s *Service) waitForIndex(ctx context.Context, op *provider.IndexOperation) (*provider.IndexOperation, error) {
	if op.Done || s.config.IndexWait <= 0 {
		return op, nil
	}

	deadline := time.NewTimer(s.config.IndexWait)
	defer deadline.Stop()
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for !op.Done {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return op, nil
		case <-ticker.C:
			refreshed, err := s.indexer.Refresh(ctx, op)
			if err != nil {
				return nil, err
			}
			op = refreshed
		}
	}

	return op, nil
}

// List returns all records, newest first
func (s *Service) List(ctx context.Context) ([]Record, error) {
	raw, err := s.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list PDFs: %w", err)
	}

	records := make([]Record, 0, len(raw))
	for key, data := range raw {
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			s.logger.Warn("Skipping unreadable PDF record",
				slog.String("key", key),
				slog.Any("error", err),
			)
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].UploadTime.Equal(records[j].UploadTime) {
			return records[i].Filename < records[j].Filename
		}
		return records[i].UploadTime.After(records[j].UploadTime)
	})

	return records, nil
}

// Get returns the record for filename or domain.ErrNotFound
func (s *Service) Get(ctx context.Context, filename string) (*Record, error) {
	var rec Record
	if err := storage.GetJSON(ctx, s.store, filename, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
