package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/asaadkhaja99/rabbit-hole/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

type kvRow struct {
	Key   string `db:"key"`
	Value []byte `db:"value"`
}

// PostgresStore keeps records in the kv_records table as JSONB
type PostgresStore struct {
	db        *sqlx.DB
	namespace string
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store scoped to namespace
func NewPostgresStore(pg *postgresql.Client, namespace string) *PostgresStore {
	return &PostgresStore{db: pg.DB, namespace: namespace}
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	query := `
		SELECT value
		FROM kv_records
		WHERE namespace = $1 AND key = $2
	`

	var value []byte
	err := s.db.GetContext(ctx, &value, query, s.namespace, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(s.namespace, key)
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_records (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (namespace, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`

	if _, err := s.db.ExecContext(ctx, query, s.namespace, key, value); err != nil {
		return fmt.Errorf("failed to set record: %w", err)
	}

	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM kv_records WHERE namespace = $1 AND key = $2`

	if _, err := s.db.ExecContext(ctx, query, s.namespace, key); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	return nil
}

func (s *PostgresStore) All(ctx context.Context) (map[string][]byte, error) {
	query := `
		SELECT key, value
		FROM kv_records
		WHERE namespace = $1
	`

	var rows []kvRow
	if err := s.db.SelectContext(ctx, &rows, query, s.namespace); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	out := make(map[string][]byte, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}

	return out, nil
}
