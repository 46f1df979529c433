package gateway

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"strings"
)

// DefaultMaxReplayBodyBytes bounds the body kept for a retry.
const DefaultMaxReplayBodyBytes int64 = 10 << 20

// ReplayBody is the request body kept for a retry. An unbuffered
// ReplayBody replays as http.NoBody.
type ReplayBody struct {
	data     []byte
	buffered bool
}

// Buffered reports whether the body was kept.
func (b *ReplayBody) Buffered() bool {
	return b != nil && b.buffered
}

// Len returns the buffered length.
func (b *ReplayBody) Len() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Restore installs a fresh copy of the body on r, or http.NoBody when
// nothing was buffered.
func (b *ReplayBody) Restore(r *http.Request) {
	if !b.Buffered() {
		r.Body = http.NoBody
		r.GetBody = func() (io.ReadCloser, error) { return http.NoBody, nil }
		r.ContentLength = 0
		return
	}
	data := b.data
	r.Body = io.NopCloser(bytes.NewReader(data))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	r.ContentLength = int64(len(data))
}

// BufferBody reads the body of r into memory when r is a POST, PUT or
// PATCH with a JSON media type on a path not matched by exempt. r is left
// ready to be forwarded either way.
//
// A body over maxBytes is not kept: the consumed prefix is stitched back in
// front of the unread rest and the result is unbuffered. A read error is
// returned as is; r.Body is then unusable.
func BufferBody(r *http.Request, exempt PathMatcher, maxBytes int64) (*ReplayBody, error) {
	if !shouldBuffer(r, exempt) {
		return &ReplayBody{}, nil
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxReplayBodyBytes
	}

	orig := r.Body
	data, err := io.ReadAll(io.LimitReader(orig, maxBytes+1))
	if err != nil {
		return nil, err
	}

	if int64(len(data)) > maxBytes {
		r.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(data), orig), orig}
		return &ReplayBody{}, nil
	}
	_ = orig.Close()

	r.Header.Del("Content-Length")
	r.Header.Del("Transfer-Encoding")
	r.TransferEncoding = nil

	body := &ReplayBody{data: data, buffered: true}
	body.Restore(r)
	return body, nil
}

func shouldBuffer(r *http.Request, exempt PathMatcher) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return false
	}
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return false
	}
	if matches(exempt, r.URL.Path) {
		return false
	}
	return isJSONMediaType(r.Header.Get("Content-Type"))
}

func isJSONMediaType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch {
	case mt == "application/json", mt == "text/json":
		return true
	case strings.HasPrefix(mt, "application/") && strings.HasSuffix(mt, "+json"):
		return true
	}
	return false
}
