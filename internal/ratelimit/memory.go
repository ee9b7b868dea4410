package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	count       int
	windowStart time.Time
}

// MemoryLimiter is an in-process fixed-window limiter. The bucket table is
// pruned to maxKeys using insertion order as an approximate LRU.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	order   []string
	max     int
	window  time.Duration
	maxKeys int
	now     func() time.Time
}

// NewMemoryLimiter creates a limiter allowing max requests per window per
// key, holding at most maxKeys buckets.
func NewMemoryLimiter(max int, window time.Duration, maxKeys int) *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		max:     max,
		window:  window,
		maxKeys: maxKeys,
		now:     time.Now,
	}
}

// Allow checks and counts one request for key.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok || now.Sub(b.windowStart) >= l.window {
		if !ok {
			l.insert(key)
		}
		l.buckets[key] = &bucket{count: 1, windowStart: now}
		return Result{Allowed: true, Remaining: l.max - 1}, nil
	}

	b.count++
	if b.count <= l.max {
		return Result{Allowed: true, Remaining: l.max - b.count}, nil
	}

	retry := l.window - now.Sub(b.windowStart)
	if retry < time.Second {
		retry = time.Second
	}
	return Result{Allowed: false, RetryAfter: retry}, nil
}

// insert records key in insertion order, evicting the oldest entries when
// the table is full. Caller holds the lock.
func (l *MemoryLimiter) insert(key string) {
	l.order = append(l.order, key)
	for len(l.order) > l.maxKeys {
		oldest := l.order[0]
		l.order = l.order[1:]
		delete(l.buckets, oldest)
	}
}

// Len reports the current bucket count, for tests and introspection.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
