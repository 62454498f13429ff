package sessionkit

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter or histogram.
type MetricID uint16

const (
	// MetricSessionCreated counts sessions written by CreateSession.
	MetricSessionCreated MetricID = iota
	// MetricSessionCreateFailure counts CreateSession calls that hit a store error.
	MetricSessionCreateFailure
	// MetricSessionEvicted counts sessions evicted by the per-user cap.
	MetricSessionEvicted
	// MetricSessionLookupHit counts lookups that returned a live session.
	MetricSessionLookupHit
	// MetricSessionLookupMiss counts lookups that reported absence.
	MetricSessionLookupMiss
	// MetricSessionExpired counts sessions reaped because ExpiresAt passed.
	MetricSessionExpired
	// MetricSessionTouched counts successful sliding-expiration updates.
	MetricSessionTouched
	// MetricRefreshSuccess counts refresh calls that issued new tokens.
	MetricRefreshSuccess
	// MetricRefreshInvalid counts refresh calls with an unknown, used or expired token.
	MetricRefreshInvalid
	// MetricRefreshRateLimited counts refresh calls rejected by the throttle.
	MetricRefreshRateLimited
	// MetricSessionRemoved counts sessions deleted by RemoveSession.
	MetricSessionRemoved
	// MetricRemoveAll counts RemoveAllUserSessions calls.
	MetricRemoveAll
	// MetricCleanupRun counts completed CleanupExpiredSessions passes.
	MetricCleanupRun
	// MetricCleanupReaped counts records and members reaped by cleanup.
	MetricCleanupReaped
	// MetricStoreUnavailable counts operations that failed on the store.
	MetricStoreUnavailable
	// MetricLookupLatency is the GetSessionByToken latency histogram.
	MetricLookupLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters. A nil or disabled
// *Metrics is valid and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a copy of every counter and histogram at one instant.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a metric set according to cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether latency histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to the counter id.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records d in the histogram id. Only [MetricLookupLatency] has a
// histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricLookupLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter, and the latency histogram when enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricLookupLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricLookupLatency].buckets[i])
		}
		s.Histograms[MetricLookupLatency] = buckets
	}

	return s
}

// bucket upper bounds: 1ms 2ms 5ms 10ms 25ms 50ms 100ms +Inf
func bucketIndex(d time.Duration) int {
	us := d.Microseconds()

	switch {
	case us <= 1000:
		return 0
	case us <= 2000:
		return 1
	case us <= 5000:
		return 2
	case us <= 10000:
		return 3
	case us <= 25000:
		return 4
	case us <= 50000:
		return 5
	case us <= 100000:
		return 6
	default:
		return 7
	}
}
