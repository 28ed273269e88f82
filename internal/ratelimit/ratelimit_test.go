package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(limit int, period time.Duration) (*MemoryLimiter, *time.Time) {
	l := NewMemoryLimiter(limit, period)
	now := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestMemoryLimiter_RejectsBeyondLimit(t *testing.T) {
	l, _ := newTestLimiter(10, time.Minute)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		allowed, err := l.Allow(ctx, "203.0.113.9")
		require.NoError(t, err)
		assert.True(t, allowed, "call %d should be allowed", i+1)
	}
	allowed, err := l.Allow(ctx, "203.0.113.9")
	require.NoError(t, err)
	assert.False(t, allowed, "call 11 should be rejected")
}

func TestMemoryLimiter_ResetsAfterWindow(t *testing.T) {
	l, now := newTestLimiter(2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		l.Allow(ctx, "203.0.113.9")
	}
	allowed, err := l.Allow(ctx, "203.0.113.9")
	require.NoError(t, err)
	assert.False(t, allowed)

	// First call after the window deadline starts a fresh window.
	*now = now.Add(time.Minute + time.Second)
	allowed, err = l.Allow(ctx, "203.0.113.9")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)
	ctx := context.Background()

	allowed, err := l.Allow(ctx, "203.0.113.9")
	require.NoError(t, err)
	assert.True(t, allowed)
	allowed, err = l.Allow(ctx, "203.0.113.9")
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = l.Allow(ctx, "198.51.100.7")
	require.NoError(t, err)
	assert.True(t, allowed, "a saturated key must not affect other keys")
}

func TestMemoryLimiter_EvictsExpiredWindows(t *testing.T) {
	l, now := newTestLimiter(5, time.Minute)
	l.sweepAt = 2
	ctx := context.Background()

	l.Allow(ctx, "a")
	l.Allow(ctx, "b")
	*now = now.Add(2 * time.Minute)
	l.Allow(ctx, "c")

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.entries, "a")
	assert.NotContains(t, l.entries, "b")
	assert.Contains(t, l.entries, "c")
}
