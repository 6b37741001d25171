package metrics

import (
	"sync/atomic"
	"time"
)

// BucketCount is the number of latency buckets per histogram.
const BucketCount = 8

const cacheLineSize = 64

type paddedCounter struct {
	value atomic.Uint64
	_     [cacheLineSize - 8]byte
}

type histogram struct {
	buckets [BucketCount]atomic.Uint64
}

// Set is a fixed-size group of counters, each with an optional histogram.
// A nil *Set accepts writes and reads as zero.
type Set struct {
	counters   []paddedCounter
	histograms []histogram
}

// NewSet allocates n counters and, when withHistograms is set, n histograms.
func NewSet(n int, withHistograms bool) *Set {
	s := &Set{counters: make([]paddedCounter, n)}
	if withHistograms {
		s.histograms = make([]histogram, n)
	}
	return s
}

// Inc adds one to counter i. Out-of-range ids are ignored.
func (s *Set) Inc(i int) {
	if s == nil || i < 0 || i >= len(s.counters) {
		return
	}
	s.counters[i].value.Add(1)
}

// Observe records d in histogram i when histograms are enabled.
func (s *Set) Observe(i int, d time.Duration) {
	if s == nil || i < 0 || i >= len(s.histograms) {
		return
	}
	s.histograms[i].buckets[BucketIndex(d)].Add(1)
}

// Value returns counter i.
func (s *Set) Value(i int) uint64 {
	if s == nil || i < 0 || i >= len(s.counters) {
		return 0
	}
	return s.counters[i].value.Load()
}

// Buckets returns a copy of histogram i, or nil when histograms are off.
func (s *Set) Buckets(i int) []uint64 {
	if s == nil || i < 0 || i >= len(s.histograms) {
		return nil
	}
	out := make([]uint64, BucketCount)
	for b := range out {
		out[b] = s.histograms[i].buckets[b].Load()
	}
	return out
}

// HistogramsEnabled reports whether Observe records anything.
func (s *Set) HistogramsEnabled() bool {
	return s != nil && s.histograms != nil
}

// BucketIndex maps a latency to its bucket: <=5ms, 10, 25, 50, 100, 250,
// 500ms, then +Inf.
func BucketIndex(d time.Duration) int {
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
