package authd

import (
	"sync/atomic"
	"time"
)

// MetricID names one engine counter or histogram.
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that produced a session.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts logins rejected for bad credentials.
	MetricLoginFailure
	// MetricLoginRateLimited counts logins rejected by the throttle.
	MetricLoginRateLimited
	// MetricRefreshSuccess counts successful rotations.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rotations rejected for an invalid refresh token.
	MetricRefreshFailure
	// MetricRefreshReplayDenied counts rotations whose marker was already consumed.
	MetricRefreshReplayDenied
	// MetricRefreshRateLimited counts rotations rejected by the throttle.
	MetricRefreshRateLimited
	// MetricSessionCreated counts sessions recorded in the token cache.
	MetricSessionCreated
	// MetricSessionCreationFailed counts sessions that could not be recorded.
	MetricSessionCreationFailed
	// MetricSessionExtended counts keep-alive extensions.
	MetricSessionExtended
	// MetricLogout counts single-session logouts.
	MetricLogout
	// MetricLogoutAll counts account-wide revocations.
	MetricLogoutAll
	// MetricAccountCreationSuccess counts pending accounts created.
	MetricAccountCreationSuccess
	// MetricAccountCreationDuplicate counts signups rejected because the email exists.
	MetricAccountCreationDuplicate
	// MetricEmailVerificationSuccess counts confirmed accounts.
	MetricEmailVerificationSuccess
	// MetricEmailVerificationFailure counts unknown or reused verification codes.
	MetricEmailVerificationFailure
	// MetricEmailSent counts verification emails handed to the mailer.
	MetricEmailSent
	// MetricEmailFailed counts verification emails the mailer rejected.
	MetricEmailFailed
	// MetricAccountDeleted counts deleted accounts.
	MetricAccountDeleted
	// MetricPasswordRehashed counts hashes upgraded after login.
	MetricPasswordRehashed
	// MetricResolveAuthorized counts requests classified Authorized.
	MetricResolveAuthorized
	// MetricResolveRefreshActive counts requests classified RefreshActive.
	MetricResolveRefreshActive
	// MetricResolveUnauthorized counts requests classified Unauthorized.
	MetricResolveUnauthorized
	// MetricWorkerUnavailable counts submissions that got no result from a crypto pool.
	MetricWorkerUnavailable
	// MetricBackendUnavailable counts token cache or user store failures.
	MetricBackendUnavailable
	// MetricResolveLatency is the per-request classification latency histogram.
	MetricResolveLatency
	// MetricPasswordVerifyLatency is the queue plus verify latency histogram.
	MetricPasswordVerifyLatency
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

// Metrics holds lock-free counters and fixed-bucket latency histograms.
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

// NewMetrics returns a metrics set. A disabled set ignores every update.
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

// LatencyEnabled reports whether histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to a counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d into a histogram. Counter ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || !IsHistogram(id) {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns a counter's current value.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when latency is enabled, every histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if IsHistogram(id) {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range []MetricID{MetricResolveLatency, MetricPasswordVerifyLatency} {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}

	return s
}

// IsHistogram reports whether id names a latency histogram.
func IsHistogram(id MetricID) bool {
	return id == MetricResolveLatency || id == MetricPasswordVerifyLatency
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
