package authcore

import "sync/atomic"

// MetricID identifies a specific counter in the in-process metrics system.
type MetricID uint16

const (
	// MetricIssueSuccess is an exported constant or variable used by the credential engine.
	MetricIssueSuccess MetricID = iota
	// MetricIssueFailure is an exported constant or variable used by the credential engine.
	MetricIssueFailure
	// MetricRefreshSuccess is an exported constant or variable used by the credential engine.
	MetricRefreshSuccess
	// MetricRefreshExpired is an exported constant or variable used by the credential engine.
	MetricRefreshExpired
	// MetricRefreshRevoked counts rotation-reuse detections (a rotated-out
	// refresh token presented again).
	MetricRefreshRevoked
	// MetricRefreshMalformed is an exported constant or variable used by the credential engine.
	MetricRefreshMalformed
	// MetricVerifySuccess is an exported constant or variable used by the credential engine.
	MetricVerifySuccess
	// MetricVerifyFailure is an exported constant or variable used by the credential engine.
	MetricVerifyFailure
	// MetricCheckAllow is an exported constant or variable used by the credential engine.
	MetricCheckAllow
	// MetricCheckDeny counts policy denies where the store answered normally.
	MetricCheckDeny
	// MetricCheckStoreFailure counts fail-closed denies caused by policy
	// store unavailability, kept distinct from MetricCheckDeny for
	// operability.
	MetricCheckStoreFailure
	// MetricCheckInvalidDomain is an exported constant or variable used by the credential engine.
	MetricCheckInvalidDomain
	// MetricPolicyMutation is an exported constant or variable used by the credential engine.
	MetricPolicyMutation
	// MetricLogout is an exported constant or variable used by the credential engine.
	MetricLogout
	// MetricLogoutAll is an exported constant or variable used by the credential engine.
	MetricLogoutAll

	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds cache-line-padded atomic counters. All operations are no-ops
// when metrics are disabled.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time deep copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a new [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
	}
}

// Enabled reports whether this instance records anything.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc atomically increments the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value returns the current value of the counter for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot returns a consistent-enough copy of all counters. Individual loads
// are atomic; the snapshot as a whole is not a single linearization point.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, int(metricIDCount)),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
