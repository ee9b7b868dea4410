package ratelimit

import (
	"fmt"
	"math"
	"net"
	"net/http"

	"github.com/brightsend/mailform/internal/pkg/logger"
)

// Middleware rejects requests over the limit with 429 and a Retry-After
// header. Keys are client IPs; chi's RealIP middleware runs upstream so
// RemoteAddr already reflects X-Forwarded-For.
func Middleware(l Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			res, err := l.Allow(r.Context(), key)
			if err != nil {
				// A broken limiter backend must not take the form endpoint
				// down with it.
				logger.Error("rate limiter check failed", "error", err.Error())
				next.ServeHTTP(w, r)
				return
			}

			if !res.Allowed {
				seconds := int(math.Ceil(res.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, `{"error":"rate limit exceeded","retry_after":%d}`, seconds)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
