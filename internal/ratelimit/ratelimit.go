// Package ratelimit guards public form submission with a fixed-window
// counter per client key.
package ratelimit

import (
	"context"
	"time"
)

// Result reports the outcome of a limiter check.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration // > 0 only when rejected; never below one second
}

// Limiter is a fixed-window rate limiter. Implementations: in-process
// memory store and a Redis-shared window.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}
