// Package middleware exposes HTTP middleware that protects downstream
// handlers with tokengate access tokens.
//
// # Guards
//
//   - [Guard] validates the bearer token (optionally falling back to the
//     access cookie) and injects the [tokengate.AuthResult] into the request
//     context.
//   - [RequireRole] rejects authenticated requests missing a role.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into validator calls. It does NOT
// implement authentication logic itself; all decisions are delegated to
// [AccessValidator].
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to the validator).
//   - Access Redis.
package middleware
