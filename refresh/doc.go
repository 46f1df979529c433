// Package refresh generates and parses the opaque handles that identify
// refresh sessions.
//
// A handle is 32 bytes from crypto/rand rendered as unpadded base64url. It
// carries no data of its own; everything about the session lives in the
// session store under the handle.
//
// # What this package must NOT do
//
//   - Access Redis or any other storage.
//   - Make authorization decisions.
package refresh
