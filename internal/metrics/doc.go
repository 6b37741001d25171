// Package metrics provides lock-free counters and latency histograms for
// courseauth observability.
//
// # Design
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically. Histograms use 8 fixed buckets (<=5ms ... +Inf). Both are
// allocation-free on the write path.
//
// # Architecture boundaries
//
// This package owns metric storage. Metric names and export (Prometheus, OTel)
// live in the root package and metrics/export/.
//
// # What this package must NOT do
//
//   - perform I/O
//   - import courseauth or any sibling package
//   - expose global registries
package metrics
