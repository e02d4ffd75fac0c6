package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/user/cesto-ofertas-go/internal/config"
)

// RedisStore implements Store with plain Redis strings under a key prefix
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(ctx context.Context, cfg *config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client, prefix: cfg.KeyPrefix}, nil
}

// Get retrieves the value stored under key
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return v, nil
}

// Put stores value under key without expiry
func (s *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to put record: %w", err)
	}
	return nil
}

// Delete removes key
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// Keys scans for keys starting with prefix
func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	pattern := escapeGlob(s.prefix+prefix) + "*"
	keys := make([]string, 0)
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan records: %w", err)
	}
	return keys, nil
}

// escapeGlob escapes Redis glob metacharacters
func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}

// Ping checks Redis connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
