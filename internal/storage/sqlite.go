package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/asaadkhaja99/rabbit-hole/shared/sqlite"
)

// SQLiteStore keeps records in the kv_records table of a local SQLite file
type SQLiteStore struct {
	db        *sqlite.Client
	namespace string
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a store scoped to namespace
func NewSQLiteStore(db *sqlite.Client, namespace string) *SQLiteStore {
	return &SQLiteStore{db: db, namespace: namespace}
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_records WHERE namespace = ? AND key = ?`,
		s.namespace, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(s.namespace, key)
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_records (namespace, key, value, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		s.namespace, key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_records WHERE namespace = ? AND key = ?`,
		s.namespace, key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) All(ctx context.Context) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM kv_records WHERE namespace = ?`,
		s.namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out[key] = value
	}
	return out, rows.Err()
}
