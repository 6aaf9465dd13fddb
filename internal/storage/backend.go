package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/asaadkhaja99/rabbit-hole/shared/postgresql"
	"github.com/asaadkhaja99/rabbit-hole/shared/redis"
	"github.com/asaadkhaja99/rabbit-hole/shared/sqlite"
)

// Backend drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// BackendConfig selects and configures one driver
type BackendConfig struct {
	Driver    string
	KeyPrefix string
	SQLite    *sqlite.Config
	Postgres  *postgresql.Config
	Redis     *redis.Config
}

// Backend owns the connection shared by every namespace
type Backend struct {
	driver    string
	newStore  func(namespace string) Store
	closeFunc func() error
}

// OpenBackend connects to the configured driver
func OpenBackend(ctx context.Context, cfg BackendConfig, logger *slog.Logger) (*Backend, error) {
	switch cfg.Driver {
	case DriverMemory:
		var mu sync.Mutex
		stores := make(map[string]Store)
		return &Backend{
			driver: cfg.Driver,
			newStore: func(ns string) Store {
				mu.Lock()
				defer mu.Unlock()
				if s, ok := stores[ns]; ok {
					return s
				}
				s := NewMemoryStore(ns)
				stores[ns] = s
				return s
			},
			closeFunc: func() error { return nil },
		}, nil

	case DriverSQLite:
		db, err := sqlite.Open(cfg.SQLite, logger)
		if err != nil {
			return nil, err
		}
		return &Backend{
			driver:    cfg.Driver,
			newStore:  func(ns string) Store { return NewSQLiteStore(db, ns) },
			closeFunc: db.Close,
		}, nil

	case DriverPostgres:
		pg, err := postgresql.Open(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		return &Backend{
			driver:    cfg.Driver,
			newStore:  func(ns string) Store { return NewPostgresStore(pg, ns) },
			closeFunc: pg.Close,
		}, nil

	case DriverRedis:
		client, err := redis.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		return &Backend{
			driver:    cfg.Driver,
			newStore:  func(ns string) Store { return NewRedisStore(client, cfg.KeyPrefix, ns) },
			closeFunc: client.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Driver)
	}
}

// Driver returns the driver name
func (b *Backend) Driver() string {
	return b.driver
}

// Namespace returns a store scoped to namespace
func (b *Backend) Namespace(namespace string) Store {
	return b.newStore(namespace)
}

// Close releases the underlying connection
func (b *Backend) Close() error {
	return b.closeFunc()
}
