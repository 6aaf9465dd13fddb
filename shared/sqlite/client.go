package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Register driver
)

// Config holds SQLite connection configuration
type Config struct {
	Path        string
	BusyTimeout int // milliseconds
}

// Client wraps the sql.DB connection
type Client struct {
	*sql.DB
	logger *slog.Logger
}

// Open opens the database file, enables WAL and runs migrations
func Open(config *Config, logger *slog.Logger) (*Client, error) {
	if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	busyTimeout := config.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = 30000
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeout)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Single connection avoids SQLITE_BUSY on concurrent writes
	db.SetMaxOpenConns(1)

	c := &Client{DB: db, logger: logger}
	if err := c.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("SQLite database ready",
		slog.String("path", config.Path),
	)

	return c, nil
}

func (c *Client) migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS kv_records (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value BLOB NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (namespace, key)
		)`,
	}

	for _, q := range queries {
		if _, err := c.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection
func (c *Client) Close() error {
	c.logger.Info("Closing SQLite database")
	return c.DB.Close()
}
