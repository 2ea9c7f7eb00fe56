// Package ratelimit implements a fixed-window request limiter over a shared
// counter, so every replica of the service sees the same counts.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter increments key and makes sure it expires after ttl.
type Counter interface {
	IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RedisCounter is a Counter on a Redis client.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter connects to addr and pings it.
func NewRedisCounter(ctx context.Context, addr, password string) (*RedisCounter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisCounter{client: client}, nil
}

func (r *RedisCounter) IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (r *RedisCounter) Close() error {
	return r.client.Close()
}

// Limiter allows Limit hits per key in each Window.
type Limiter struct {
	counter Counter
	limit   int64
	window  time.Duration
	now     func() time.Time
}

func NewLimiter(c Counter, limit int, window time.Duration) *Limiter {
	return &Limiter{counter: c, limit: int64(limit), window: window, now: time.Now}
}

// Allow records one hit for key and reports whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := l.now().Truncate(l.window).Unix()
	n, err := l.counter.IncrWithExpire(ctx, fmt.Sprintf("ratelimit:%s:%d", key, bucket), l.window)
	if err != nil {
		return false, err
	}
	return n <= l.limit, nil
}
