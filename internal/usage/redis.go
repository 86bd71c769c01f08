package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/DukeRupert/dentalab/internal/domain"
	"github.com/go-redis/redis/v8"
)

// RedisConfig configures the Redis counter backend.
type RedisConfig struct {
	URL       string
	KeyPrefix string        // defaults to "usage"
	Retention time.Duration // how long past months are kept; 0 keeps forever
}

// RedisCounter stores counters as Redis integers updated with INCR.
type RedisCounter struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
}

// NewRedisCounter connects to Redis and verifies the connection.
func NewRedisCounter(ctx context.Context, cfg RedisConfig) (*RedisCounter, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisCounterFromClient(client, cfg), nil
}

// NewRedisCounterFromClient wraps an existing client.
func NewRedisCounterFromClient(client *redis.Client, cfg RedisConfig) *RedisCounter {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "usage"
	}
	return &RedisCounter{
		client:    client,
		prefix:    prefix,
		retention: cfg.Retention,
	}
}

// Key formats the Redis key for a usage key.
// Format: {prefix}:{accountID}:{kind}:{YYYY-MM}
func (c *RedisCounter) Key(key domain.UsageKey) string {
	return fmt.Sprintf("%s:%s:%s:%s", c.prefix, key.AccountID, key.Kind, key.Month)
}

// Get returns the count for key, treating a missing key as zero.
func (c *RedisCounter) Get(ctx context.Context, key domain.UsageKey) (int64, error) {
	n, err := c.client.Get(ctx, c.Key(key)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get usage: %w", err)
	}
	return n, nil
}

// Increment atomically adds one with INCR. When a retention is configured the
// expiry is set in the same MULTI/EXEC; the deadline is absolute, so
// repeating it on every increment is harmless.
func (c *RedisCounter) Increment(ctx context.Context, key domain.UsageKey) (int64, error) {
	k := c.Key(key)

	var incr *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		if c.retention > 0 {
			pipe.ExpireAt(ctx, k, key.Month.Start().AddDate(0, 1, 0).Add(c.retention))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis incr usage: %w", err)
	}
	return incr.Val(), nil
}

// Ping checks connectivity.
func (c *RedisCounter) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *RedisCounter) Close() error {
	return c.client.Close()
}
