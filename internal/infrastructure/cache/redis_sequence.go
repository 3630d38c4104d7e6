// Package cache holds the redis-backed counters shared by concurrent
// ingestion workers.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/easyml-code/ocr-data-insertion/internal/infrastructure/config"
)

// DefaultSequenceKey is the redis key holding the last issued GRN sequence.
const DefaultSequenceKey = "ocr:grn:sequence"

// NewRedisClient connects to redis and verifies the connection.
func NewRedisClient(cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg == nil {
		return nil, errors.New("redis configuration is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisSequence issues GRN sequence values with INCR, so every process
// sharing the key draws from one counter.
type RedisSequence struct {
	client redis.Cmdable
	key    string
}

// NewRedisSequence creates a sequence on key; empty uses DefaultSequenceKey.
func NewRedisSequence(client redis.Cmdable, key string) *RedisSequence {
	if key == "" {
		key = DefaultSequenceKey
	}
	return &RedisSequence{client: client, key: key}
}

// Init makes the next value at least start. An existing counter is left
// untouched.
func (s *RedisSequence) Init(ctx context.Context, start int64) error {
	if start < 1 {
		return fmt.Errorf("sequence start must be positive, got %d", start)
	}
	if err := s.client.SetNX(ctx, s.key, start-1, 0).Err(); err != nil {
		return fmt.Errorf("initialise sequence %s: %w", s.key, err)
	}
	return nil
}

// Next returns the next value of the counter.
func (s *RedisSequence) Next(ctx context.Context) (int64, error) {
	v, err := s.client.Incr(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("increment sequence %s: %w", s.key, err)
	}
	return v, nil
}
