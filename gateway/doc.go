// Package gateway is the edge interceptor that keeps short-lived bearer
// access tokens fresh for clients.
//
// # Request path
//
//	RequestID -> CookieToBearer -> Coordinator -> reverse proxy -> upstream
//
// The [Coordinator] classifies each request with the [Inspector]. A request
// with only a refresh cookie is refreshed before it is forwarded. Any other
// request is forwarded through an intercepting writer; a 401 from upstream
// is held, the refresh endpoint is called once through the [Refresher] and
// the original request is replayed with the new bearer token. A request is
// never forwarded more than twice.
//
// # Loop guard
//
// Paths matched by the configured [PathMatcher] (the refresh endpoint and
// anything below it) are forwarded untouched. They are never pre-refreshed,
// buffered or retried.
//
// # Bodies
//
// JSON bodies of POST, PUT and PATCH requests are buffered up to
// Config.MaxReplayBodyBytes so the retry can resend them byte for byte.
// Other bodies stream through and a retry of such a request is sent with
// an empty body.
//
// # What this package must NOT do
//
//   - Parse, verify or mint tokens. Downstream services validate bearers.
//   - Touch response bodies other than a held 401.
//   - Balance across upstream hosts.
package gateway
