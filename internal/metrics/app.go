// Package metrics records application metrics on the telemetry system. Every
// recorder is a no-op until observability.InitMetrics has run.
package metrics

import (
	"time"

	"github.com/itemtally/itemtally/internal/observability"
)

// Application metric names.
const (
	DispatchTotal  = "app_dispatch_total"
	DispatchWaitMs = "app_dispatch_wait_ms"

	PageFetchTotal = "app_page_fetch_total"

	CollectionsTotal   = "app_collections_total"
	CollectionDuration = "app_collection_duration_ms"
	CollectionTotal    = "app_collection_item_total"

	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"
)

func count(name string, labels map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Counter(name, 1, labels)
	}
}

func observe(name string, d time.Duration, labels map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Histogram(name, d, labels)
	}
}

func outcome(ok bool, good, bad string) string {
	if ok {
		return good
	}
	return bad
}

// RecordDispatch counts a rate limiter dispatch. Paced dispatches also record
// how long they waited for their slot.
func RecordDispatch(origin string, waited time.Duration, paced bool) {
	count(DispatchTotal, map[string]string{
		"origin": origin,
		"mode":   outcome(paced, "paced", "unpaced"),
	})
	if paced {
		observe(DispatchWaitMs, waited, map[string]string{"origin": origin})
	}
}

// RecordPageFetch counts a page probe made by the boundary search.
func RecordPageFetch(phase string, success bool) {
	count(PageFetchTotal, map[string]string{
		"phase":  phase,
		"status": outcome(success, "success", "failure"),
	})
}

// RecordCollection records a finished collector run and, on success, the
// total it reported.
func RecordCollection(collector string, success bool, duration time.Duration, total int64) {
	count(CollectionsTotal, map[string]string{
		"collector": collector,
		"status":    outcome(success, "success", "failure"),
	})
	observe(CollectionDuration, duration, map[string]string{"collector": collector})

	if sys := observability.TelemetrySystem; sys != nil && success {
		_ = sys.Gauge(CollectionTotal, float64(total), map[string]string{"collector": collector})
	}
}

// RecordHealthCheck records a health check execution.
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	count(HealthCheckTotal, map[string]string{
		"check":  checkName,
		"status": outcome(healthy, "healthy", "unhealthy"),
	})
	observe(HealthCheckDuration, duration, map[string]string{"check": checkName})
}
