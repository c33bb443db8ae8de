// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Login outcomes passed to IncLogin.
const (
	LoginSuccess     = "success"
	LoginFailed      = "failed"
	LoginRateLimited = "rate_limited"
)

// Token rejection reasons passed to IncAuthRejected.
const (
	AuthMissingToken = "missing_token"
	AuthInvalidToken = "invalid_token"
	AuthExpiredToken = "expired_token"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Authentication metrics
	IncLogin(outcome string)
	IncAuthRejected(reason string)

	// Task management metrics
	IncTaskCreated()
	IncTaskUpdated()
	IncTaskDeleted()

	// Task query metrics
	ObserveTaskQuery(duration time.Duration, items int)
	IncOwnershipViolation()

	// Store health
	IncStoreUnavailable()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
