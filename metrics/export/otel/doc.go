// Package otel binds goAccess counters and the MFA latency histogram to
// OpenTelemetry observable instruments.
//
// [NewExporter] creates one Int64ObservableCounter per counter and one
// Int64ObservableGauge per histogram bucket. A single callback reads
// [goAccess.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
