// Package prometheus exposes tokengate engine metrics through
// prometheus/client_golang.
//
// [Collector] reads [tokengate.Engine.MetricsSnapshot] on each scrape and
// emits const metrics named tokengate_*_total plus the
// tokengate_validate_latency_seconds histogram. Register it on any
// registry, or use [Handler] for a private one.
//
// # What this package must NOT do
//
//   - Register into prometheus.DefaultRegisterer on its own.
//   - Mutate engine state.
package prometheus
