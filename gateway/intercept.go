package gateway

import (
	"bufio"
	"bytes"
	"net"
	"net/http"
)

// DefaultMaxHeldBodyBytes bounds the body of a held 401.
const DefaultMaxHeldBodyBytes int64 = 64 << 10

// interceptWriter decides the fate of a response on its first final status.
//
// Until then headers collect in a private map. A status for which hold
// returns true is kept in memory together with its headers and body, and
// nothing reaches the client; any other status is copied through and
// streamed. A held body that grows past maxHeld is spilled: the response so
// far goes to the client, the rest streams, and held turns false.
type interceptWriter struct {
	w       http.ResponseWriter
	hold    func(status int) bool
	maxHeld int64

	header  http.Header
	decided bool
	held    bool
	spilled bool
	status  int
	body    bytes.Buffer
}

func newInterceptWriter(w http.ResponseWriter, maxHeld int64, hold func(status int) bool) *interceptWriter {
	if maxHeld <= 0 {
		maxHeld = DefaultMaxHeldBodyBytes
	}
	return &interceptWriter{
		w:       w,
		hold:    hold,
		maxHeld: maxHeld,
		header:  make(http.Header),
	}
}

func (iw *interceptWriter) Header() http.Header {
	if iw.decided && !iw.held {
		return iw.w.Header()
	}
	return iw.header
}

func (iw *interceptWriter) WriteHeader(status int) {
	if iw.decided {
		if !iw.held {
			iw.w.WriteHeader(status)
		}
		return
	}

	if status >= 100 && status <= 199 && status != http.StatusSwitchingProtocols {
		dst := iw.w.Header()
		copyHeader(dst, iw.header)
		iw.w.WriteHeader(status)
		for k := range iw.header {
			dst.Del(k)
		}
		return
	}

	iw.decided = true
	iw.status = status
	if iw.hold != nil && iw.hold(status) {
		iw.held = true
		return
	}

	copyHeader(iw.w.Header(), iw.header)
	iw.w.WriteHeader(status)
}

func (iw *interceptWriter) Write(b []byte) (int, error) {
	if !iw.decided {
		iw.WriteHeader(http.StatusOK)
	}
	if iw.held {
		if int64(iw.body.Len()+len(b)) <= iw.maxHeld {
			return iw.body.Write(b)
		}
		if err := iw.spill(); err != nil {
			return 0, err
		}
	}
	return iw.w.Write(b)
}

// spill gives up holding: the status, headers and buffered body go out and
// later writes stream through.
func (iw *interceptWriter) spill() error {
	iw.held = false
	iw.spilled = true
	copyHeader(iw.w.Header(), iw.header)
	iw.w.WriteHeader(iw.status)
	_, err := iw.w.Write(iw.body.Bytes())
	iw.body = bytes.Buffer{}
	return err
}

// Flush is a no-op while the response is undecided or held.
func (iw *interceptWriter) Flush() {
	if !iw.decided || iw.held {
		return
	}
	_ = http.NewResponseController(iw.w).Flush()
}

// Hijack hands the connection over for protocol upgrades. A hijacked
// response counts as decided and is never held.
func (iw *interceptWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if iw.held {
		return nil, nil, http.ErrHijacked
	}
	conn, rw, err := http.NewResponseController(iw.w).Hijack()
	if err == nil {
		iw.decided = true
		iw.status = http.StatusSwitchingProtocols
	}
	return conn, rw, err
}

func (iw *interceptWriter) Unwrap() http.ResponseWriter {
	return iw.w
}

// finish settles a response the handler never wrote.
func (iw *interceptWriter) finish() {
	if !iw.decided {
		iw.WriteHeader(http.StatusOK)
	}
}

// release writes a held response to the client unchanged.
func (iw *interceptWriter) release() {
	if !iw.held {
		return
	}
	copyHeader(iw.w.Header(), iw.header)
	iw.w.WriteHeader(iw.status)
	_, _ = iw.w.Write(iw.body.Bytes())
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
