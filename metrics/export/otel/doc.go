// Package otel binds courseauth metrics to an OpenTelemetry Meter.
//
// [NewExporter] registers one Int64ObservableCounter per counter and one
// Int64ObservableGauge per histogram bucket plus a count gauge. A single
// callback reads the client's MetricsSnapshot on each collection.
//
// # What this package must NOT do
//
//   - own the MeterProvider; callers supply the Meter
//   - mutate client state
package otel
