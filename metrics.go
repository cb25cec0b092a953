package goAccess

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a counter or histogram in the in-process metrics.
type MetricID uint16

const (
	// MetricIdentityFailure counts ValidateIdentity rejections of any kind.
	MetricIdentityFailure MetricID = iota
	// MetricTenantResolved counts successful tenant resolutions.
	MetricTenantResolved
	// MetricPermissionAllowed counts Authorize calls that passed.
	MetricPermissionAllowed
	// MetricPermissionDenied counts Authorize calls that were denied.
	MetricPermissionDenied
	// MetricMFAEnrollmentStarted counts generated secrets.
	MetricMFAEnrollmentStarted
	// MetricMFAEnabled counts confirmed enrollments.
	MetricMFAEnabled
	// MetricMFATOTPSuccess counts verifications satisfied by a TOTP code.
	MetricMFATOTPSuccess
	// MetricMFABackupCodeUsed counts verifications satisfied by a backup code.
	MetricMFABackupCodeUsed
	// MetricMFAVerifyFailure counts invalid codes that reached failure accounting.
	MetricMFAVerifyFailure
	// MetricMFALockout counts Unlocked to Locked transitions.
	MetricMFALockout
	// MetricMFALockedOutRejected counts attempts short-circuited by an active lock.
	MetricMFALockedOutRejected
	// MetricMFADisabled counts disable operations.
	MetricMFADisabled
	// MetricBackupCodesRegenerated counts backup code regenerations.
	MetricBackupCodesRegenerated
	// MetricMFAVerifyLatency is the histogram of VerifyMFAAtLogin latency.
	MetricMFAVerifyLatency
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

// Metrics holds lock-free counters and the verification latency histogram.
// All methods are safe on a nil receiver.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a [Metrics] instance. When cfg.Enabled is false every
// operation is a no-op.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram id. Only histogram metrics accept
// observations.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricMFAVerifyLatency {
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

// Snapshot copies every counter and, when enabled, the latency histogram.
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
		if id == MetricMFAVerifyLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricMFAVerifyLatency].buckets[i])
		}
		s.Histograms[MetricMFAVerifyLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
