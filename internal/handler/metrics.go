package handler

import (
	"fmt"
	"net/http"

	"github.com/tasktrack/tasktrack/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "tasktrack_logins_total{outcome=\"success\"} %d\n", snap.LoginSuccess)
	writeMetric(w, "tasktrack_logins_total{outcome=\"failed\"} %d\n", snap.LoginFailed)
	writeMetric(w, "tasktrack_logins_total{outcome=\"rate_limited\"} %d\n", snap.LoginRateLimited)

	writeMetric(w, "tasktrack_auth_rejected_total{reason=\"missing_token\"} %d\n", snap.AuthMissingToken)
	writeMetric(w, "tasktrack_auth_rejected_total{reason=\"invalid_token\"} %d\n", snap.AuthInvalidToken)
	writeMetric(w, "tasktrack_auth_rejected_total{reason=\"expired_token\"} %d\n", snap.AuthExpiredToken)

	writeMetric(w, "tasktrack_tasks_created_total %d\n", snap.TasksCreated)
	writeMetric(w, "tasktrack_tasks_updated_total %d\n", snap.TasksUpdated)
	writeMetric(w, "tasktrack_tasks_deleted_total %d\n", snap.TasksDeleted)

	writeMetric(w, "tasktrack_task_query_duration_seconds_count %d\n", snap.TaskQueryCount)
	writeMetric(w, "tasktrack_task_query_duration_seconds_sum %.6f\n", float64(snap.TaskQueryDurationNs)/1e9)
	writeMetric(w, "tasktrack_task_query_items_total %d\n", snap.TaskQueryItems)
	writeMetric(w, "tasktrack_ownership_violations_total %d\n", snap.OwnershipViolations)
	writeMetric(w, "tasktrack_store_unavailable_total %d\n", snap.StoreUnavailable)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
