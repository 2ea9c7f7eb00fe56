package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCounter struct {
	mu   sync.Mutex
	hits map[string]int64
	ttl  time.Duration
	err  error
}

func (m *memCounter) IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	if m.hits == nil {
		m.hits = map[string]int64{}
	}
	m.hits[key]++
	m.ttl = ttl
	return m.hits[key], nil
}

func TestLimiter_FixedWindow(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	c := &memCounter{}
	l := NewLimiter(c, 2, time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "login:10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "login:10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok, "third hit in the window")

	ok, _ = l.Allow(ctx, "login:10.0.0.2")
	assert.True(t, ok, "other keys are independent")

	now = now.Add(time.Minute)
	ok, _ = l.Allow(ctx, "login:10.0.0.1")
	assert.True(t, ok, "next window starts fresh")
	assert.Equal(t, time.Minute, c.ttl)
}

func TestLimiter_CounterError(t *testing.T) {
	l := NewLimiter(&memCounter{err: errors.New("redis down")}, 1, time.Minute)
	ok, err := l.Allow(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, ok)
}
