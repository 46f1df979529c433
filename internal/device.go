package internal

import "crypto/sha256"

// HashBindingValue returns the SHA-256 digest used to bind a refresh session
// to the client that created it.
func HashBindingValue(v string) [32]byte {
	return sha256.Sum256([]byte(v))
}
