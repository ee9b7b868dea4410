package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryLimiterWindow(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute, 100)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	// N requests allowed.
	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "1.2.3.4")
		if err != nil || !res.Allowed {
			t.Fatalf("request %d: allowed=%v err=%v", i+1, res.Allowed, err)
		}
	}

	// (N+1)-th rejected with retry-after equal to the remaining window.
	now = now.Add(10 * time.Second)
	res, _ := l.Allow(ctx, "1.2.3.4")
	if res.Allowed {
		t.Fatal("4th request in window allowed")
	}
	if res.RetryAfter != 50*time.Second {
		t.Errorf("retry after = %v, want 50s", res.RetryAfter)
	}

	// Other keys are unaffected.
	if res, _ := l.Allow(ctx, "5.6.7.8"); !res.Allowed {
		t.Error("unrelated key rejected")
	}

	// After the window elapses the count resets to 1.
	now = now.Add(time.Minute)
	res, _ = l.Allow(ctx, "1.2.3.4")
	if !res.Allowed {
		t.Fatal("request after window rejected")
	}
	if res.Remaining != 2 {
		t.Errorf("remaining = %d, want 2 (count reset to 1)", res.Remaining)
	}
}

func TestMemoryLimiterMinimumRetryAfter(t *testing.T) {
	l := NewMemoryLimiter(1, 2*time.Second, 100)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	l.Allow(ctx, "k")
	now = now.Add(1900 * time.Millisecond) // 100ms of window left
	res, _ := l.Allow(ctx, "k")
	if res.Allowed {
		t.Fatal("over-limit request allowed")
	}
	if res.RetryAfter < time.Second {
		t.Errorf("retry after = %v, want >= 1s", res.RetryAfter)
	}
}

func TestMemoryLimiterPrunesOldestKeys(t *testing.T) {
	l := NewMemoryLimiter(10, time.Minute, 3)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		l.Allow(ctx, k)
	}
	if l.Len() != 3 {
		t.Errorf("bucket count = %d, want 3", l.Len())
	}

	// The oldest keys were evicted, so "a" starts a fresh window.
	res, _ := l.Allow(ctx, "a")
	if !res.Allowed || res.Remaining != 9 {
		t.Errorf("evicted key did not reset: %+v", res)
	}
}

func setupRedisLimiter(t *testing.T, max int, window time.Duration) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLimiter(client, max, window), mr
}

func TestRedisLimiterWindow(t *testing.T) {
	l, mr := setupRedisLimiter(t, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "1.2.3.4")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d rejected", i+1)
		}
	}

	res, err := l.Allow(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if res.Allowed {
		t.Fatal("3rd request allowed")
	}
	if res.RetryAfter < time.Second {
		t.Errorf("retry after = %v, want >= 1s", res.RetryAfter)
	}

	// Window expiry resets the count.
	mr.FastForward(time.Minute + time.Second)
	res, err = l.Allow(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !res.Allowed || res.Remaining != 1 {
		t.Errorf("after expiry: %+v", res)
	}
}

func TestMiddleware(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute, 100)
	handler := Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/v1/form/message", nil)
	req.RemoteAddr = "203.0.113.7:41000"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}

	// Different client IP has its own window.
	req2 := httptest.NewRequest("POST", "/v1/form/message", nil)
	req2.RemoteAddr = "203.0.113.8:41000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req2)
	if rec.Code != http.StatusOK {
		t.Errorf("other client: %d", rec.Code)
	}
}
