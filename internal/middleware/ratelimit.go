package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/tasktrack/tasktrack/internal/auth"
	"github.com/tasktrack/tasktrack/internal/cache"
)

// KeyFunc derives the rate limit key for a request. An empty key skips limiting.
type KeyFunc func(r *http.Request) string

// RateLimitConfig holds configuration for one rate limited route group.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter cache.RateLimiter
	Enabled bool
	// Bucket namespaces the counters, e.g. "login" or "api".
	Bucket string
	Limit  cache.Limit
	// KeyFunc defaults to KeyByIP.
	KeyFunc KeyFunc
	// OnLimited is called whenever a request is rejected.
	OnLimited func(r *http.Request)
}

// RateLimit returns middleware enforcing cfg.Limit per key.
// If the limiter itself fails the request is let through.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = KeyByIP
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || cfg.Limiter == nil || cfg.Limit.PerMinute <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			result, err := cfg.Limiter.CheckRateLimit(r.Context(), cfg.Bucket, key, cfg.Limit)
			if err != nil {
				logger.Error("rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("bucket", cfg.Bucket),
				)
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, result.Limit, result.Remaining, result.ResetAt)

			if !result.Allowed {
				logger.Warn("rate limit exceeded",
					slog.String("bucket", cfg.Bucket),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int64("retry_after_seconds", retryAfterSeconds(result.RetryAfter)),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				if cfg.OnLimited != nil {
					cfg.OnLimited(r)
				}
				writeRateLimitError(w, result.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// KeyByIP keys on the client address. Run chi's RealIP first when the
// service sits behind a trusted proxy.
func KeyByIP(r *http.Request) string {
	return clientIP(r)
}

// KeyBySubject keys on the authenticated subject, falling back to the client IP.
func KeyBySubject(r *http.Request) string {
	if subject := auth.SubjectFromContext(r.Context()); subject != "" {
		return "sub:" + subject
	}
	return clientIP(r)
}

// setRateLimitHeaders sets standard rate limit response headers.
func setRateLimitHeaders(w http.ResponseWriter, limit int, remaining int64, resetAt time.Time) {
	if limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
	}
}

// writeRateLimitError writes a 429 Too Many Requests response.
func writeRateLimitError(w http.ResponseWriter, retryAfter time.Duration) {
	seconds := retryAfterSeconds(retryAfter)
	w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
	writeError(w, http.StatusTooManyRequests, "RATE_LIMITED",
		fmt.Sprintf("rate limit exceeded, retry after %d seconds", seconds))
}

// retryAfterSeconds rounds up so clients never retry too early.
func retryAfterSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 1
	}
	return int64((d + time.Second - 1) / time.Second)
}

// clientIP strips the port from RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
