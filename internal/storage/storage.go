// Package storage provides the namespaced key-value record store used for
// PDF metadata and job records.
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/asaadkhaja99/rabbit-hole/internal/domain"
)

// Namespaces used by the service
const (
	NamespacePDFs = "pdfs"
	NamespaceJobs = "jobs"
)

// Store is a durable mapping from key to a JSON-encoded record.
// Set always replaces the whole record; there are no field patches and no
// cross-record transactions.
type Store interface {
	// Get returns the raw record for key or domain.ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// All returns every record in the namespace keyed by record key
	All(ctx context.Context) (map[string][]byte, error)
}

// GetJSON loads the record for key and decodes it into dest
func GetJSON(ctx context.Context, s Store, key string, dest any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode record %q: %w", key, err)
	}

	return nil
}

// SetJSON encodes value and replaces the record stored under key
func SetJSON(ctx context.Context, s Store, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode record %q: %w", key, err)
	}

	return s.Set(ctx, key, data)
}

// notFound builds the error returned for a missing key
func notFound(namespace, key string) error {
	return fmt.Errorf("%s record %q: %w", namespace, key, domain.ErrNotFound)
}
