package refresh

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// HandleSize is the number of random bytes behind a handle.
const HandleSize = 32

// EncodedHandleLen is the length of a handle in its string form.
var EncodedHandleLen = base64.RawURLEncoding.EncodedLen(HandleSize)

// ErrMalformedHandle is returned by ParseHandle for anything that could not
// have been produced by NewHandle.
var ErrMalformedHandle = errors.New("malformed refresh handle")

var strictEncoding = base64.RawURLEncoding.Strict()

// Handle is the raw form of a refresh-session handle.
type Handle [HandleSize]byte

// NewHandle draws a fresh handle from crypto/rand.
func NewHandle() (Handle, error) {
	var h Handle
	_, err := rand.Read(h[:])
	return h, err
}

// NewHandleString is NewHandle followed by String.
func NewHandleString() (string, error) {
	h, err := NewHandle()
	if err != nil {
		return "", err
	}
	return h.String(), nil
}

func (h Handle) String() string {
	return base64.RawURLEncoding.EncodeToString(h[:])
}

// ParseHandle checks that s is a well-formed handle. It says nothing about
// whether a session exists for it.
func ParseHandle(s string) (Handle, error) {
	var h Handle
	if len(s) != EncodedHandleLen {
		return h, ErrMalformedHandle
	}
	raw, err := strictEncoding.DecodeString(s)
	if err != nil || len(raw) != HandleSize {
		return h, ErrMalformedHandle
	}
	copy(h[:], raw)
	return h, nil
}
