// Package postgresql opens the Postgres database backing the shared key-value store.
package postgresql

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const defaultConnectTimeout = 5 * time.Second

// Config holds PostgreSQL connection configuration. URL, when set, takes
// precedence over the individual connection fields.
type Config struct {
	URL             string
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	ConnectTimeout  time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN returns the lib/pq connection string
func (c *Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}

	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	pairs := []string{
		"host=" + quote(c.Host),
		fmt.Sprintf("port=%d", c.Port),
		"dbname=" + quote(c.Database),
		"sslmode=" + quote(sslMode),
	}
	if c.User != "" {
		pairs = append(pairs, "user="+quote(c.User))
	}
	if c.Password != "" {
		pairs = append(pairs, "password="+quote(c.Password))
	}
	return strings.Join(pairs, " ")
}

// quote escapes a keyword/value pair value the way lib/pq parses it
func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Client wraps the sqlx connection pool
type Client struct {
	*sqlx.DB
	logger *slog.Logger
}

// Open connects, applies the pool settings and creates the kv_records table
func Open(ctx context.Context, config *Config, logger *slog.Logger) (*Client, error) {
	timeout := config.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	logger.Info("Connecting to PostgreSQL",
		slog.String("host", config.Host),
		slog.Int("port", config.Port),
		slog.String("database", config.Database),
		slog.Bool("url", config.URL != ""),
	)

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := sqlx.ConnectContext(connectCtx, "postgres", config.DSN())
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL", slog.Any("error", err))
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	c := &Client{DB: db, logger: logger}
	if err := c.migrate(connectCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("PostgreSQL database ready",
		slog.Int("max_open_conns", config.MaxOpenConns),
		slog.Duration("conn_max_lifetime", config.ConnMaxLifetime),
	)

	return c, nil
}

func (c *Client) migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS kv_records (
			namespace  TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (namespace, key)
		)`,
		`CREATE INDEX IF NOT EXISTS kv_records_updated_at_idx ON kv_records (namespace, updated_at DESC)`,
	}

	tx, err := c.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range queries {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close closes the connection pool
func (c *Client) Close() error {
	c.logger.Info("Closing PostgreSQL connection")
	return c.DB.Close()
}
