package courseauth

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if s := m.Snapshot(); len(s.Counters) != 0 || len(s.Histograms) != 0 {
		t.Fatalf("disabled snapshot not empty: %+v", s)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 2000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricRefreshWaiter)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricRefreshWaiter); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramOnlyForLatencyIDs(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Observe(MetricRefreshLatency, 3*time.Millisecond)
	m.Observe(MetricRefreshLatency, 700*time.Millisecond)
	m.Observe(MetricLoginSuccess, time.Millisecond)
	m.Inc(MetricRefreshLatency)

	s := m.Snapshot()
	b := s.Histograms[MetricRefreshLatency]
	if len(b) != 8 || b[0] != 1 || b[7] != 1 {
		t.Fatalf("buckets = %v", b)
	}
	if _, ok := s.Histograms[MetricLoginSuccess]; ok {
		t.Fatal("counter id must not have a histogram")
	}
	if _, ok := s.Counters[MetricRefreshLatency]; ok {
		t.Fatal("histogram id must not appear among counters")
	}
	if !MetricRequestLatency.IsHistogram() || MetricForcedLogout.IsHistogram() {
		t.Fatal("IsHistogram misclassifies ids")
	}
}

func TestMetricsLatencyDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricRequestLatency, time.Millisecond)
	if m.LatencyEnabled() || len(m.Snapshot().Histograms) != 0 {
		t.Fatal("histograms recorded while disabled")
	}
}
