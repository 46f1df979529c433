// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunRefresh, RunValidate, RunLogout) accepts a
// typed dependency struct and returns a result carrying a failure kind, so
// the Engine can map failures to metrics, audit events and public errors in
// one place.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the session store, the token manager and
// the rate limiter. They do NOT own any of these resources; ownership stays
// with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root package (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency interfaces.
package flows
