package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
)

// Config holds Redis connection configuration
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Client wraps the go-redis client with the hash operations the store needs
type Client struct {
	cli    *redis.Client
	logger *slog.Logger
}

// NewClient connects to Redis and verifies the connection
func NewClient(ctx context.Context, config *Config, logger *slog.Logger) (*Client, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info("Successfully connected to Redis",
		slog.String("addr", config.Addr),
		slog.Int("db", config.DB),
	)

	return &Client{cli: c, logger: logger}, nil
}

// HGet returns the field value and whether it exists
func (c *Client) HGet(ctx context.Context, key, field string) ([]byte, bool, error) {
	val, err := c.cli.HGet(ctx, key, field).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// HSet sets a single hash field
func (c *Client) HSet(ctx context.Context, key, field string, value []byte) error {
	return c.cli.HSet(ctx, key, field, value).Err()
}

// HDel removes a hash field
func (c *Client) HDel(ctx context.Context, key, field string) error {
	return c.cli.HDel(ctx, key, field).Err()
}

// HGetAll returns every field of the hash
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.cli.HGetAll(ctx, key).Result()
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.cli.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	c.logger.Info("Closing Redis connection")
	return c.cli.Close()
}
