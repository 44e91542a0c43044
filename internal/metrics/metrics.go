package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID indexes a counter or latency histogram.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginRateLimited
	MetricLoginLocked
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshReuseDetected
	MetricRefreshRateLimited
	MetricValidateSuccess
	MetricValidateInvalid
	MetricValidateExpired
	MetricValidateRevoked
	MetricRegisterSuccess
	MetricRegisterDuplicate
	MetricRegisterFailure
	MetricLogout
	MetricKeyRotation
	MetricStoreUnavailable
	MetricValidateLatency
	MetricLoginLatency
	MetricRefreshLatency
	MetricIDCount
)

// HistogramBucketCount is the number of latency buckets per histogram.
const HistogramBucketCount = 8

const cacheLineSize = 64

// IsHistogram reports whether id is a latency histogram rather than a counter.
func IsHistogram(id MetricID) bool {
	switch id {
	case MetricValidateLatency, MetricLoginLatency, MetricRefreshLatency:
		return true
	}
	return false
}

type histogram struct {
	buckets [HistogramBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Config toggles collection.
type Config struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// Metrics is a lock-free set of counters and fixed-bucket latency histograms.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [MetricIDCount]paddedCounter
	histograms    [MetricIDCount]histogram
}

// Snapshot is a point-in-time copy. Histogram buckets are non-cumulative.
type Snapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
	// AuditDropped is filled by the engine from its audit dispatcher; it is
	// reported even when counters are disabled.
	AuditDropped uint64
}

func New(cfg Config) *Metrics {
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

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= MetricIDCount || IsHistogram(id) {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || !IsHistogram(id) {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil || !m.enabled {
		return Snapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := Snapshot{
		Counters:   make(map[MetricID]uint64, int(MetricIDCount)),
		Histograms: make(map[MetricID][]uint64, 3),
	}
	for id := MetricID(0); id < MetricIDCount; id++ {
		if IsHistogram(id) {
			if m.enableLatency {
				buckets := make([]uint64, HistogramBucketCount)
				for i := range buckets {
					buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
				}
				s.Histograms[id] = buckets
			}
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
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
