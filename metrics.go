package courseauth

import (
	"time"

	internalmetrics "github.com/BUICUONGG/courseauth/internal/metrics"
)

// MetricID identifies one client metric.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLogout
	// MetricRefreshStarted counts refresh calls sent to the identity service.
	MetricRefreshStarted
	MetricRefreshSuccess
	MetricRefreshFailure
	// MetricRefreshSkipped counts flights that found the store already fresh or
	// whose credentials another writer replaced first.
	MetricRefreshSkipped
	// MetricRefreshWaiter counts callers that shared another caller's flight.
	MetricRefreshWaiter
	MetricProactiveRefresh
	MetricReactiveRefresh
	MetricForcedLogout
	MetricRequestExecuted
	MetricRequestRetried
	MetricRequestSessionExpired
	MetricStoreChange
	MetricSessionNotified
	// Histograms follow the counters.
	MetricRefreshLatency
	MetricRequestLatency
	metricIDCount
)

const firstHistogram = MetricRefreshLatency

// IsHistogram reports whether id names a latency histogram.
func (id MetricID) IsHistogram() bool {
	return id >= firstHistogram && id < metricIDCount
}

// MetricIDCount is the number of defined metrics.
const MetricIDCount = int(metricIDCount)

// Metrics holds the client's counters and latency histograms. A nil or
// disabled Metrics accepts writes and reports zero.
type Metrics struct {
	enabled bool
	set     *internalmetrics.Set
}

// MetricsSnapshot is a point-in-time copy of all metrics. Histogram buckets
// follow internal/metrics bucket order: <=5ms, 10, 25, 50, 100, 250, 500ms,
// +Inf.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics allocates metrics according to cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{}
	}
	return &Metrics{
		enabled: true,
		set:     internalmetrics.NewSet(int(metricIDCount), cfg.EnableLatencyHistograms),
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m.Enabled() && m.set.HistogramsEnabled()
}

// Inc adds one to a counter. Histogram ids are ignored.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= firstHistogram {
		return
	}
	m.set.Inc(int(id))
}

// Observe records a latency. Counter ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.Enabled() || !id.IsHistogram() {
		return
	}
	m.set.Observe(int(id), d)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if !m.Enabled() {
		return 0
	}
	return m.set.Value(int(id))
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if !m.Enabled() {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(firstHistogram)),
		Histograms: make(map[MetricID][]uint64, int(metricIDCount-firstHistogram)),
	}
	for id := MetricID(0); id < firstHistogram; id++ {
		s.Counters[id] = m.set.Value(int(id))
	}
	if m.set.HistogramsEnabled() {
		for id := firstHistogram; id < metricIDCount; id++ {
			s.Histograms[id] = m.set.Buckets(int(id))
		}
	}
	return s
}
