package cache

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tasktrack/tasktrack/internal/auth"
)

// Limit is a token bucket: PerMinute tokens refill each minute, up to Burst.
// A zero PerMinute means unlimited.
type Limit struct {
	PerMinute int
	Burst     int
}

func (l Limit) perSecond() float64 {
	return float64(l.PerMinute) / 60.0
}

func (l Limit) burst() int {
	if l.Burst < 1 {
		return 1
	}
	return l.Burst
}

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RateLimiter decides whether one more request for key in bucket is allowed.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, bucket, key string, limit Limit) (*RateLimitResult, error)
}

// tokenBucketScript refills and consumes in one atomic step.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])      -- tokens per second
	local burst = tonumber(ARGV[2])     -- bucket capacity
	local now = tonumber(ARGV[3])       -- current time in seconds (fractional)
	local ttl = tonumber(ARGV[4])       -- key TTL in seconds

	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1]) or burst
	local last_update = tonumber(data[2]) or now

	local elapsed = math.max(0, now - last_update)
	tokens = math.min(burst, tokens + (elapsed * rate))

	local allowed = 0
	local retry_after = 0

	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after = math.ceil((1 - tokens) / rate)
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_update', now)
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after, math.floor(tokens)}
`)

var _ RateLimiter = (*Cache)(nil)

// CheckRateLimit consumes one token from the Redis bucket for key.
// Redis failures are returned to the caller, which decides whether to fail open.
func (c *Cache) CheckRateLimit(ctx context.Context, bucket, key string, limit Limit) (*RateLimitResult, error) {
	if limit.PerMinute <= 0 {
		return unlimited(limit), nil
	}

	rate := limit.perSecond()
	burst := limit.burst()
	now := time.Now()
	// Keep the key until a drained bucket has fully refilled.
	ttl := int(math.Ceil(float64(burst)/rate)) + 1

	result, err := tokenBucketScript.Run(ctx, c.client,
		[]string{c.rateLimitKey(bucket, key)},
		rate, burst, float64(now.UnixMilli())/1000.0, ttl,
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(result) != 3 {
		return nil, fmt.Errorf("rate limit script: unexpected reply length %d", len(result))
	}

	return &RateLimitResult{
		Allowed:    result[0] == 1,
		Limit:      limit.PerMinute,
		Remaining:  result[2],
		ResetAt:    now.Add(time.Duration(float64(time.Second) / rate)),
		RetryAfter: time.Duration(result[1]) * time.Second,
	}, nil
}

func (c *Cache) rateLimitKey(bucket, key string) string {
	return c.prefix + "ratelimit:" + bucket + ":" + auth.QuickHash(key)
}

func unlimited(limit Limit) *RateLimitResult {
	return &RateLimitResult{
		Allowed:   true,
		Limit:     0,
		Remaining: int64(limit.Burst),
		ResetAt:   time.Now().Add(time.Minute),
	}
}
