// Package authserver is the HTTP surface of the authentication service.
//
// It exposes login, login info, refresh and logout over a chi router and
// answers every route with the JSON envelope
//
//	{"status": 200, "message": "OK", "data": ..., "path": "/login/v1/loginProc", "timestamp": "..."}
//
// Credentials travel as two HttpOnly cookies: the access token and the
// opaque refresh handle. The gateway forwards the refresh endpoint's
// Set-Cookie headers to clients untouched.
//
// # What this package must NOT do
//
//   - Implement authentication logic. Every decision is delegated to
//     [tokengate.Engine].
//   - Log tokens or refresh handles.
package authserver
