package storage

import (
	"context"
	"fmt"

	"github.com/asaadkhaja99/rabbit-hole/shared/redis"
)

// RedisStore keeps each namespace in a single Redis hash
type RedisStore struct {
	client *redis.Client
	hash   string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a store backed by the hash "<prefix>:<namespace>"
func NewRedisStore(client *redis.Client, prefix, namespace string) *RedisStore {
	hash := namespace
	if prefix != "" {
		hash = prefix + ":" + namespace
	}
	return &RedisStore{client: client, hash: hash}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, ok, err := s.client.HGet(ctx, s.hash, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	if !ok {
		return nil, notFound(s.hash, key)
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.HSet(ctx, s.hash, key, value); err != nil {
		return fmt.Errorf("failed to set record: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.HDel(ctx, s.hash, key); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

func (s *RedisStore) All(ctx context.Context) (map[string][]byte, error) {
	fields, err := s.client.HGetAll(ctx, s.hash)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	out := make(map[string][]byte, len(fields))
	for k, v := range fields {
		out[k] = []byte(v)
	}
	return out, nil
}
