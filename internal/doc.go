// Package internal holds helpers private to tokengate.
//
// # Sub-packages
//
//   - appconfig: viper-backed configuration for the binaries
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function flow orchestrators for every Engine operation
//   - logging: slog handler construction
//   - metrics: lock-free counters and latency histograms
//   - rate: Redis-backed login and refresh throttles
//   - redisconn: Redis client construction with ping backoff
//
// # What this package must NOT do
//
//   - Export types that appear in the public tokengate API.
//   - Be imported by any package outside the tokengate module.
package internal
