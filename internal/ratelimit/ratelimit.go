// Package ratelimit guards the anonymous validation endpoint with a
// per-origin fixed-window counter.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether a request from the given key may proceed.
// Implementations own their counter state; handlers hold no limiter state
// of their own.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// window tracks one key's counter within the current fixed window.
type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is an in-process fixed-window limiter. The window is
// approximate: a burst can straddle a window boundary, which is acceptable
// for abuse deterrence.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*window
	limit   int
	period  time.Duration
	now     func() time.Time

	// Lazy eviction: stale keys are swept when the map grows past the
	// high-water mark, so memory stays bounded without a background goroutine.
	sweepAt int
}

var _ Limiter = (*MemoryLimiter)(nil)

const defaultSweepThreshold = 1024

// NewMemoryLimiter creates a limiter allowing limit requests per period and
// key.
func NewMemoryLimiter(limit int, period time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		entries: make(map[string]*window),
		limit:   limit,
		period:  period,
		now:     time.Now,
		sweepAt: defaultSweepThreshold,
	}
}

// Allow increments the key's counter and reports whether the request is
// within the limit. The first request for a key, or the first after the
// window deadline, resets the counter to 1 and extends the deadline.
func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.entries[key]
	if w == nil || now.After(w.resetAt) {
		if len(l.entries) >= l.sweepAt {
			l.sweep(now)
		}
		l.entries[key] = &window{count: 1, resetAt: now.Add(l.period)}
		return true, nil
	}
	w.count++
	return w.count <= l.limit, nil
}

// sweep removes expired windows. Caller holds l.mu.
func (l *MemoryLimiter) sweep(now time.Time) {
	for key, w := range l.entries {
		if now.After(w.resetAt) {
			delete(l.entries, key)
		}
	}
}
