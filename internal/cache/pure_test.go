package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/tasktrack/tasktrack/internal/auth"
)

func TestRateLimitKey_DeterministicAndFixedLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  string
	}{
		{"IPv4", "192.168.1.1"},
		{"IPv6", "2001:0db8:85a3:0000:0000:8a2e:0370:7334"},
		{"email", "alice@example.com"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := NewFromClient(nil)
			k1, k2 := c.rateLimitKey("api", tt.key), c.rateLimitKey("api", tt.key)
			if k1 != k2 {
				t.Errorf("rateLimitKey(%q) not deterministic: %s vs %s", tt.key, k1, k2)
			}
			if want := len("tasktrack:ratelimit:api:") + 32; len(k1) != want {
				t.Errorf("rateLimitKey(%q) length = %d, want %d", tt.key, len(k1), want)
			}
		})
	}
}

func TestRateLimitKey_Different(t *testing.T) {
	t.Parallel()

	c := NewFromClient(nil)
	if c.rateLimitKey("login", "10.0.0.1") == c.rateLimitKey("login", "10.0.0.2") {
		t.Error("different keys should hash differently")
	}
}

func TestRateLimitKey_HidesRawKey(t *testing.T) {
	t.Parallel()

	c := NewFromClient(nil)
	key := c.rateLimitKey("login", "203.0.113.9")
	if want := "tasktrack:ratelimit:login:" + auth.QuickHash("203.0.113.9"); key != want {
		t.Fatalf("rateLimitKey = %q, want %q", key, want)
	}
}

func TestLocalLimiter_BurstThenDeny(t *testing.T) {
	t.Parallel()

	l := NewLocalLimiter()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	limit := Limit{PerMinute: 60, Burst: 3}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.CheckRateLimit(ctx, "login", "ip-1", limit)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	res, _ := l.CheckRateLimit(ctx, "login", "ip-1", limit)
	if res.Allowed {
		t.Fatal("fourth request should be denied")
	}
	if res.RetryAfter < time.Second {
		t.Errorf("RetryAfter = %v, want >= 1s", res.RetryAfter)
	}

	other, _ := l.CheckRateLimit(ctx, "login", "ip-2", limit)
	if !other.Allowed {
		t.Error("a different key has its own bucket")
	}

	now = now.Add(time.Second)
	res, _ = l.CheckRateLimit(ctx, "login", "ip-1", limit)
	if !res.Allowed {
		t.Error("one token should refill after one second at 60/min")
	}
}

func TestLocalLimiter_Unlimited(t *testing.T) {
	t.Parallel()

	l := NewLocalLimiter()
	for i := 0; i < 100; i++ {
		res, _ := l.CheckRateLimit(context.Background(), "api", "k", Limit{})
		if !res.Allowed {
			t.Fatal("zero PerMinute means unlimited")
		}
	}
	if l.Len() != 0 {
		t.Errorf("unlimited checks should not allocate buckets, got %d", l.Len())
	}
}

func TestLocalLimiter_SweepsIdleKeys(t *testing.T) {
	t.Parallel()

	l := NewLocalLimiter()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	limit := Limit{PerMinute: 10, Burst: 1}

	_, _ = l.CheckRateLimit(context.Background(), "api", "old", limit)
	now = now.Add(localIdleTTL + 2*localSweepInterval)
	_, _ = l.CheckRateLimit(context.Background(), "api", "new", limit)

	if l.Len() != 1 {
		t.Fatalf("expected idle key to be swept, have %d keys", l.Len())
	}
}

type stubLimiter struct {
	res   *RateLimitResult
	err   error
	calls int
}

func (s *stubLimiter) CheckRateLimit(context.Context, string, string, Limit) (*RateLimitResult, error) {
	s.calls++
	return s.res, s.err
}

func TestFallbackLimiter(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limit := Limit{PerMinute: 10, Burst: 1}

	primary := &stubLimiter{res: &RateLimitResult{Allowed: false}}
	fallback := &stubLimiter{res: &RateLimitResult{Allowed: true}}
	f := NewFallbackLimiter(primary, fallback, logger)

	res, err := f.CheckRateLimit(context.Background(), "login", "k", limit)
	if err != nil || res.Allowed {
		t.Fatalf("primary answer should win: %+v %v", res, err)
	}
	if fallback.calls != 0 {
		t.Fatalf("fallback should not be consulted")
	}

	primary.err = errors.New("redis: connection refused")
	res, err = f.CheckRateLimit(context.Background(), "login", "k", limit)
	if err != nil || !res.Allowed {
		t.Fatalf("fallback answer expected: %+v %v", res, err)
	}
	if fallback.calls != 1 {
		t.Fatalf("fallback calls = %d, want 1", fallback.calls)
	}
}
