// Package jwt signs and verifies the short-lived access tokens handed to
// clients and forwarded to downstream services as bearer credentials.
//
// A Manager is stateless after construction: Encode and Decode do no I/O and
// may be called from any number of goroutines.
package jwt
