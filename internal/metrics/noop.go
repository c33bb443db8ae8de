package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncLogin is a no-op.
func (n *NoopRecorder) IncLogin(outcome string) {}

// IncAuthRejected is a no-op.
func (n *NoopRecorder) IncAuthRejected(reason string) {}

// IncTaskCreated is a no-op.
func (n *NoopRecorder) IncTaskCreated() {}

// IncTaskUpdated is a no-op.
func (n *NoopRecorder) IncTaskUpdated() {}

// IncTaskDeleted is a no-op.
func (n *NoopRecorder) IncTaskDeleted() {}

// ObserveTaskQuery is a no-op.
func (n *NoopRecorder) ObserveTaskQuery(duration time.Duration, items int) {}

// IncOwnershipViolation is a no-op.
func (n *NoopRecorder) IncOwnershipViolation() {}

// IncStoreUnavailable is a no-op.
func (n *NoopRecorder) IncStoreUnavailable() {}
