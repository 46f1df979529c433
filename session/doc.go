// Package session stores refresh sessions in Redis under opaque handles.
//
// # Operations
//
// [Store.Issue] creates a session and returns its handle. [Store.Validate]
// looks a handle up and, when given a fingerprint input, deletes the session
// on mismatch. [Store.Revoke] and [Store.RevokeAll] delete one session or all
// sessions of a user. Rotation is composed by the caller as Validate, Revoke,
// Issue; only the caller whose Revoke removed the record should issue the
// replacement.
//
// # Binary encoding
//
// Records use a compact versioned binary layout. The device fingerprint sits
// at a fixed offset so the validate script can compare it server-side.
//
// # Architecture boundaries
//
// This package owns the [Store] and the [Session] model. It does NOT mint
// access tokens or enforce authentication policy; those belong to the Engine.
//
// # What this package must NOT do
//
//   - Import tokengate, jwt, or gateway (no upward imports).
//   - Store raw user-agent strings; only their digest is kept.
package session
