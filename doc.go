// Package tokengate is the authentication core behind the edge gateway: it
// verifies passwords, opens device-bound refresh sessions in Redis, rotates
// them on refresh and mints short-lived JWT access tokens.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// tokengate is the public surface of the auth service. It exposes [Engine],
// [Builder], [Config] and value types. Flow orchestration, rate limiting,
// metrics storage and audit dispatch live under internal/. The HTTP surface
// lives in authserver and the token-refreshing edge in gateway.
//
// # What this package must NOT do
//
//   - Serve HTTP or set cookies; authserver owns the wire format.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Import gateway or authserver (no import cycles).
//
// # Performance contract
//
// ValidateAccess is the hot path and completes without Redis round trips.
// Login and Refresh use a handful of Redis commands, each single-record
// mutation atomic.
package tokengate
