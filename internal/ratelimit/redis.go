package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key prefix for validation rate-limit counters.
const counterKeyPrefix = "rl:validate:"

// RedisLimiter is a Redis-backed fixed-window limiter for deployments with
// more than one instance, where per-process counters would multiply the
// effective limit.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	period time.Duration
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter constructs a limiter backed by the given client.
func NewRedisLimiter(client *redis.Client, limit int, period time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, period: period}
}

// NewRedisLimiterFromURL parses a Redis URL, verifies connectivity, and
// returns a limiter using it.
func NewRedisLimiterFromURL(ctx context.Context, url string, limit int, period time.Duration) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ratelimit: redis ping failed: %w", err)
	}
	return NewRedisLimiter(client, limit, period), nil
}

// Allow increments the key's window counter with INCR and sets the window
// TTL on the first hit. INCR is atomic, so concurrent requests from the
// same origin never under-count here.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := counterKeyPrefix + key
	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit: failed to increment counter for '%s': %w", key, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.period).Err(); err != nil {
			return false, fmt.Errorf("ratelimit: failed to set window TTL for '%s': %w", key, err)
		}
	}
	return count <= int64(l.limit), nil
}

// Close releases the underlying Redis connection.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
