// Package prometheus exposes goAccess metrics through client_golang.
//
// [Collector] implements prometheus.Collector over
// [goAccess.Engine.MetricsSnapshot]; register it on any registry or use
// [Handler] for a ready /metrics endpoint. Counter names are
// goaccess_*_total; the single histogram is goaccess_mfa_verify_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
