package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	LoginSuccess     uint64
	LoginFailed      uint64
	LoginRateLimited uint64

	AuthMissingToken uint64
	AuthInvalidToken uint64
	AuthExpiredToken uint64

	TasksCreated uint64
	TasksUpdated uint64
	TasksDeleted uint64

	TaskQueryCount      uint64
	TaskQueryDurationNs int64
	TaskQueryItems      uint64
	OwnershipViolations uint64
	StoreUnavailable    uint64
}

// InMemoryRecorder stores metrics in memory. It backs the /metrics endpoint
// and doubles as a test recorder.
type InMemoryRecorder struct {
	loginSuccess     uint64
	loginFailed      uint64
	loginRateLimited uint64

	authMissingToken uint64
	authInvalidToken uint64
	authExpiredToken uint64

	tasksCreated uint64
	tasksUpdated uint64
	tasksDeleted uint64

	taskQueryCount      uint64
	taskQueryDurationNs int64
	taskQueryItems      uint64
	ownershipViolations uint64
	storeUnavailable    uint64
}

var _ Recorder = (*InMemoryRecorder)(nil)

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		LoginSuccess:        atomic.LoadUint64(&m.loginSuccess),
		LoginFailed:         atomic.LoadUint64(&m.loginFailed),
		LoginRateLimited:    atomic.LoadUint64(&m.loginRateLimited),
		AuthMissingToken:    atomic.LoadUint64(&m.authMissingToken),
		AuthInvalidToken:    atomic.LoadUint64(&m.authInvalidToken),
		AuthExpiredToken:    atomic.LoadUint64(&m.authExpiredToken),
		TasksCreated:        atomic.LoadUint64(&m.tasksCreated),
		TasksUpdated:        atomic.LoadUint64(&m.tasksUpdated),
		TasksDeleted:        atomic.LoadUint64(&m.tasksDeleted),
		TaskQueryCount:      atomic.LoadUint64(&m.taskQueryCount),
		TaskQueryDurationNs: atomic.LoadInt64(&m.taskQueryDurationNs),
		TaskQueryItems:      atomic.LoadUint64(&m.taskQueryItems),
		OwnershipViolations: atomic.LoadUint64(&m.ownershipViolations),
		StoreUnavailable:    atomic.LoadUint64(&m.storeUnavailable),
	}
}

// IncLogin counts a login attempt by outcome. Unknown outcomes count as failed.
func (m *InMemoryRecorder) IncLogin(outcome string) {
	switch outcome {
	case LoginSuccess:
		atomic.AddUint64(&m.loginSuccess, 1)
	case LoginRateLimited:
		atomic.AddUint64(&m.loginRateLimited, 1)
	default:
		atomic.AddUint64(&m.loginFailed, 1)
	}
}

// IncAuthRejected counts a rejected bearer token by reason.
func (m *InMemoryRecorder) IncAuthRejected(reason string) {
	switch reason {
	case AuthMissingToken:
		atomic.AddUint64(&m.authMissingToken, 1)
	case AuthExpiredToken:
		atomic.AddUint64(&m.authExpiredToken, 1)
	default:
		atomic.AddUint64(&m.authInvalidToken, 1)
	}
}

// IncTaskCreated increments task created counter.
func (m *InMemoryRecorder) IncTaskCreated() {
	atomic.AddUint64(&m.tasksCreated, 1)
}

// IncTaskUpdated increments task updated counter.
func (m *InMemoryRecorder) IncTaskUpdated() {
	atomic.AddUint64(&m.tasksUpdated, 1)
}

// IncTaskDeleted increments task deleted counter.
func (m *InMemoryRecorder) IncTaskDeleted() {
	atomic.AddUint64(&m.tasksDeleted, 1)
}

// ObserveTaskQuery records one listing query.
func (m *InMemoryRecorder) ObserveTaskQuery(duration time.Duration, items int) {
	atomic.AddUint64(&m.taskQueryCount, 1)
	atomic.AddInt64(&m.taskQueryDurationNs, duration.Nanoseconds())
	if items > 0 {
		atomic.AddUint64(&m.taskQueryItems, uint64(items))
	}
}

// IncOwnershipViolation counts items dropped because the store returned a
// task outside the caller's scope.
func (m *InMemoryRecorder) IncOwnershipViolation() {
	atomic.AddUint64(&m.ownershipViolations, 1)
}

// IncStoreUnavailable counts store calls that failed or timed out.
func (m *InMemoryRecorder) IncStoreUnavailable() {
	atomic.AddUint64(&m.storeUnavailable, 1)
}
