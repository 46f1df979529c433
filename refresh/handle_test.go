package refresh

import (
	"errors"
	"strings"
	"testing"
)

func TestNewHandleRoundTrip(t *testing.T) {
	s, err := NewHandleString()
	if err != nil {
		t.Fatalf("new handle: %v", err)
	}
	if len(s) != EncodedHandleLen {
		t.Fatalf("expected length %d, got %d", EncodedHandleLen, len(s))
	}
	if strings.ContainsAny(s, "+/=:") {
		t.Fatalf("handle %q contains characters outside base64url", s)
	}

	h, err := ParseHandle(s)
	if err != nil {
		t.Fatalf("parse handle: %v", err)
	}
	if h.String() != s {
		t.Fatalf("round trip mismatch: %q != %q", h.String(), s)
	}
}

func TestNewHandleUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		s, err := NewHandleString()
		if err != nil {
			t.Fatalf("new handle: %v", err)
		}
		if _, dup := seen[s]; dup {
			t.Fatalf("duplicate handle after %d draws", i)
		}
		seen[s] = struct{}{}
	}
}

func TestParseHandleRejectsMalformed(t *testing.T) {
	valid, _ := NewHandleString()
	cases := []string{
		"",
		"short",
		valid[:len(valid)-1],
		valid + "A",
		strings.Repeat("*", EncodedHandleLen),
		strings.Repeat("A", EncodedHandleLen-1) + "=",
	}
	for _, in := range cases {
		if _, err := ParseHandle(in); !errors.Is(err, ErrMalformedHandle) {
			t.Fatalf("ParseHandle(%q) = %v, want ErrMalformedHandle", in, err)
		}
	}
}

func FuzzParseHandle(f *testing.F) {
	valid, _ := NewHandleString()
	f.Add(valid)
	f.Add("")
	f.Add("a:b")

	f.Fuzz(func(t *testing.T, in string) {
		h, err := ParseHandle(in)
		if err != nil {
			return
		}
		if h.String() != in {
			t.Fatalf("accepted %q but re-encodes to %q", in, h.String())
		}
	})
}
