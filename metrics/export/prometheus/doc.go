// Package prometheus exposes courseauth metrics as a Prometheus collector.
//
// [Exporter] implements prometheus.Collector over a client's MetricsSnapshot.
// Counters are named courseauth_*_total; latency histograms are
// courseauth_*_latency_seconds. Handler serves a private registry, so nothing
// is registered globally unless the caller registers the Exporter.
//
// # What this package must NOT do
//
//   - register in prometheus.DefaultRegisterer on its own
//   - mutate client state
package prometheus
