// Package rate implements Redis fixed-window counters for login and refresh
// throttling.
//
// # Window semantics
//
// INCR plus a conditional EXPIRE on the first hit, so the window starts at
// the first attempt. Key suffixes under the configured prefix:
//   - :l:<user>   login per-user
//   - :li:<ip>    login per-IP
//   - :r:<digest> refresh per-handle (SHA-256 of the handle, never the raw handle)
//
// # What this package must NOT do
//
//   - Decide what happens to a throttled caller; that belongs to the Engine.
//   - Be imported outside this module.
package rate
