package storage

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/asaadkhaja99/rabbit-hole/shared/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) *sqlite.Client {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := sqlite.Open(&sqlite.Config{
		Path: filepath.Join(t.TempDir(), "data", "rabbit-hole.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewSQLiteStore(openTestSQLite(t), NamespaceJobs)
	})
}

func TestSQLiteStore_NamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := openTestSQLite(t)

	pdfs := NewSQLiteStore(db, NamespacePDFs)
	jobs := NewSQLiteStore(db, NamespaceJobs)

	require.NoError(t, pdfs.Set(ctx, "shared-key", []byte(`{"kind":"pdf"}`)))
	require.NoError(t, jobs.Set(ctx, "shared-key", []byte(`{"kind":"job"}`)))

	got, err := pdfs.Get(ctx, "shared-key")
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"pdf"}`, string(got))

	all, err := jobs.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.JSONEq(t, `{"kind":"job"}`, string(all["shared-key"]))
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "kv.db")

	db, err := sqlite.Open(&sqlite.Config{Path: path}, logger)
	require.NoError(t, err)
	require.NoError(t, NewSQLiteStore(db, NamespaceJobs).Set(ctx, "j", []byte(`{"status":"complete"}`)))
	require.NoError(t, db.Close())

	db, err = sqlite.Open(&sqlite.Config{Path: path}, logger)
	require.NoError(t, err)
	defer db.Close()

	got, err := NewSQLiteStore(db, NamespaceJobs).Get(ctx, "j")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"complete"}`, string(got))
}
