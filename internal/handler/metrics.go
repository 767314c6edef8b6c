package handler

import (
	"fmt"
	"net/http"

	"github.com/usersapi/usersapi/internal/metrics"
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

	writeMetric(w, "usersapi_user_cache_hits_total %d\n", snap.UserCacheHits)
	writeMetric(w, "usersapi_user_cache_misses_total %d\n", snap.UserCacheMisses)
	writeMetric(w, "usersapi_user_lookup_duration_seconds_count %d\n", snap.LookupDurationCount)
	writeMetric(w, "usersapi_user_lookup_duration_seconds_sum %.6f\n", float64(snap.LookupDurationTotalNs)/1e9)

	writeMetric(w, "usersapi_users_created_total %d\n", snap.UsersCreated)
	writeMetric(w, "usersapi_users_updated_total %d\n", snap.UsersUpdated)
	writeMetric(w, "usersapi_users_deleted_total %d\n", snap.UsersDeleted)

	writeMetric(w, "usersapi_validation_failures_total %d\n", snap.ValidationFailures)
	writeMetric(w, "usersapi_rate_limited_total %d\n", snap.RateLimited)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
