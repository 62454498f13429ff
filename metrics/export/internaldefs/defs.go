package internaldefs

import (
	"github.com/resumeforge/sessionkit"
)

// CounterDef names one sessionkit counter for export.
type CounterDef struct {
	ID   sessionkit.MetricID
	Name string
	Help string
}

// HistogramDef names one sessionkit histogram for export.
type HistogramDef struct {
	ID   sessionkit.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exported for dropped audit events.
const (
	AuditDroppedName = "sessionkit_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: sessionkit.MetricSessionCreated, Name: "sessionkit_session_created_total", Help: "Created sessions."},
	{ID: sessionkit.MetricSessionCreateFailure, Name: "sessionkit_session_create_failure_total", Help: "Session creations that failed on the store."},
	{ID: sessionkit.MetricSessionEvicted, Name: "sessionkit_session_evicted_total", Help: "Sessions evicted by the per-user cap."},
	{ID: sessionkit.MetricSessionLookupHit, Name: "sessionkit_session_lookup_hit_total", Help: "Lookups that returned a live session."},
	{ID: sessionkit.MetricSessionLookupMiss, Name: "sessionkit_session_lookup_miss_total", Help: "Lookups that found no live session."},
	{ID: sessionkit.MetricSessionExpired, Name: "sessionkit_session_expired_total", Help: "Sessions reaped after their expiry passed."},
	{ID: sessionkit.MetricSessionTouched, Name: "sessionkit_session_touched_total", Help: "Sliding-expiration updates."},
	{ID: sessionkit.MetricRefreshSuccess, Name: "sessionkit_refresh_success_total", Help: "Refresh calls that issued new tokens."},
	{ID: sessionkit.MetricRefreshInvalid, Name: "sessionkit_refresh_invalid_total", Help: "Refresh calls with an unknown, used or expired token."},
	{ID: sessionkit.MetricRefreshRateLimited, Name: "sessionkit_refresh_rate_limited_total", Help: "Refresh calls rejected by the throttle."},
	{ID: sessionkit.MetricSessionRemoved, Name: "sessionkit_session_removed_total", Help: "Sessions deleted explicitly."},
	{ID: sessionkit.MetricRemoveAll, Name: "sessionkit_remove_all_total", Help: "Remove-all-user-sessions operations."},
	{ID: sessionkit.MetricCleanupRun, Name: "sessionkit_cleanup_run_total", Help: "Completed cleanup passes."},
	{ID: sessionkit.MetricCleanupReaped, Name: "sessionkit_cleanup_reaped_total", Help: "Sessions and dangling members reaped by cleanup."},
	{ID: sessionkit.MetricStoreUnavailable, Name: "sessionkit_store_unavailable_total", Help: "Operations that failed because the store was unreachable."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: sessionkit.MetricLookupLatency, Name: "sessionkit_lookup_latency_seconds", Help: "Access-token lookup latency."},
}

// HistogramBounds are the bucket labels, +Inf last.
var HistogramBounds = []string{
	"0.001",
	"0.002",
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"+Inf",
}

// HistogramUpperBounds are the finite bucket bounds in seconds.
var HistogramUpperBounds = []float64{0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1}

// HistogramBoundSuffix are the bounds in a form usable inside instrument names.
var HistogramBoundSuffix = []string{
	"0_001",
	"0_002",
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
