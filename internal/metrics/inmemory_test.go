package metrics

import (
	"testing"
	"time"
)

func TestInMemoryRecorder_Counters(t *testing.T) {
	m := NewInMemory()

	m.IncLogin(LoginSuccess)
	m.IncLogin(LoginFailed)
	m.IncLogin("something-else")
	m.IncLogin(LoginRateLimited)
	m.IncAuthRejected(AuthMissingToken)
	m.IncAuthRejected(AuthExpiredToken)
	m.IncAuthRejected(AuthInvalidToken)
	m.IncAuthRejected("unknown")
	m.IncTaskCreated()
	m.IncTaskUpdated()
	m.IncTaskUpdated()
	m.IncTaskDeleted()
	m.ObserveTaskQuery(2*time.Millisecond, 5)
	m.ObserveTaskQuery(3*time.Millisecond, 0)
	m.IncOwnershipViolation()
	m.IncStoreUnavailable()

	got := m.Snapshot()
	want := Snapshot{
		LoginSuccess:        1,
		LoginFailed:         2,
		LoginRateLimited:    1,
		AuthMissingToken:    1,
		AuthInvalidToken:    2,
		AuthExpiredToken:    1,
		TasksCreated:        1,
		TasksUpdated:        2,
		TasksDeleted:        1,
		TaskQueryCount:      2,
		TaskQueryDurationNs: (5 * time.Millisecond).Nanoseconds(),
		TaskQueryItems:      5,
		OwnershipViolations: 1,
		StoreUnavailable:    1,
	}
	if got != want {
		t.Fatalf("snapshot mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestNoopRecorder_SatisfiesInterface(t *testing.T) {
	var r Recorder = NewNoop()
	r.IncLogin(LoginSuccess)
	r.ObserveTaskQuery(time.Second, 1)
}
