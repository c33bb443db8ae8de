package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	localSweepInterval = time.Minute
	localIdleTTL       = 10 * time.Minute
)

type localEntry struct {
	limiter  *rate.Limiter
	limit    Limit
	lastSeen time.Time
}

// LocalLimiter is an in-process token bucket per key. It never fails and is
// used when Redis is unreachable, so limits hold per instance rather than
// cluster-wide.
type LocalLimiter struct {
	mu        sync.Mutex
	entries   map[string]*localEntry
	lastSweep time.Time
	now       func() time.Time
}

// NewLocalLimiter creates an empty LocalLimiter.
func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{
		entries: make(map[string]*localEntry),
		now:     time.Now,
	}
}

var _ RateLimiter = (*LocalLimiter)(nil)

// CheckRateLimit consumes one token from the in-process bucket for key.
func (l *LocalLimiter) CheckRateLimit(_ context.Context, bucket, key string, limit Limit) (*RateLimitResult, error) {
	if limit.PerMinute <= 0 {
		return unlimited(limit), nil
	}

	now := l.now()
	entry := l.entry(bucket+":"+key, limit, now)

	res := &RateLimitResult{Limit: limit.PerMinute}
	reservation := entry.limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	if delay > 0 {
		reservation.CancelAt(now)
		res.RetryAfter = delay.Round(time.Second)
		if res.RetryAfter < time.Second {
			res.RetryAfter = time.Second
		}
	} else {
		res.Allowed = true
	}

	tokens := entry.limiter.TokensAt(now)
	if tokens < 0 {
		tokens = 0
	}
	res.Remaining = int64(tokens)
	res.ResetAt = now.Add(time.Duration(float64(time.Second) / limit.perSecond()))
	return res, nil
}

func (l *LocalLimiter) entry(key string, limit Limit, now time.Time) *localEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > localSweepInterval {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > localIdleTTL {
				delete(l.entries, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.entries[key]
	if !ok || e.limit != limit {
		e = &localEntry{
			limiter: rate.NewLimiter(rate.Limit(limit.perSecond()), limit.burst()),
			limit:   limit,
		}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e
}

// Len reports how many keys are being tracked.
func (l *LocalLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// FallbackLimiter consults the primary limiter and switches to the local one
// for any call the primary cannot answer.
type FallbackLimiter struct {
	primary  RateLimiter
	fallback RateLimiter
	logger   *slog.Logger
}

// NewFallbackLimiter creates a FallbackLimiter.
func NewFallbackLimiter(primary, fallback RateLimiter, logger *slog.Logger) *FallbackLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackLimiter{primary: primary, fallback: fallback, logger: logger}
}

// CheckRateLimit implements RateLimiter.
func (f *FallbackLimiter) CheckRateLimit(ctx context.Context, bucket, key string, limit Limit) (*RateLimitResult, error) {
	if f.primary != nil {
		res, err := f.primary.CheckRateLimit(ctx, bucket, key, limit)
		if err == nil {
			return res, nil
		}
		f.logger.Warn("rate limit store unavailable, using local limiter",
			slog.String("bucket", bucket),
			slog.String("error", err.Error()),
		)
	}
	return f.fallback.CheckRateLimit(ctx, bucket, key, limit)
}
