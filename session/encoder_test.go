package session

import (
	"errors"
	"testing"
)

func TestEncodeDecodePreservesFields(t *testing.T) {
	in := &Session{
		UserID:            "42",
		DisplayName:       "Zoë",
		Roles:             []string{"USER", "ADMIN"},
		DeviceBound:       true,
		DeviceFingerprint: Fingerprint("ua"),
		IssuedAt:          1700000000,
		ExpiresAt:         1700003600,
	}
	data, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.UserID != in.UserID || out.DisplayName != in.DisplayName || out.IssuedAt != in.IssuedAt || out.ExpiresAt != in.ExpiresAt {
		t.Fatalf("fields mismatch: %+v", out)
	}
	if !out.DeviceBound || out.DeviceFingerprint != in.DeviceFingerprint {
		t.Fatal("fingerprint not preserved")
	}
	if len(out.Roles) != 2 || out.Roles[1] != "ADMIN" {
		t.Fatalf("roles mismatch: %v", out.Roles)
	}
}

func TestEncodeKeepsFingerprintAtFixedOffset(t *testing.T) {
	fp := Fingerprint("fixed")
	data, err := Encode(&Session{UserID: "a-much-longer-user-id", DeviceBound: true, DeviceFingerprint: fp})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if data[1]&flagDeviceBound == 0 {
		t.Fatal("device-bound flag not set")
	}
	if string(data[fingerprintOffset:fingerprintEnd]) != string(fp[:]) {
		t.Fatal("fingerprint not at fixed offset")
	}
}

func TestDecodeRejectsTruncatedAndTrailing(t *testing.T) {
	data, err := Encode(&Session{UserID: "u", Roles: []string{"USER"}, IssuedAt: 1, ExpiresAt: 2})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for i := 0; i < len(data); i++ {
		if _, err := Decode(data[:i]); !errors.Is(err, ErrSessionCorrupt) {
			t.Fatalf("expected truncated record at %d to be corrupt, got %v", i, err)
		}
	}
	if _, err := Decode(append(append([]byte{}, data...), 0)); !errors.Is(err, ErrSessionCorrupt) {
		t.Fatalf("expected trailing byte to be rejected, got %v", err)
	}
}

// FuzzSessionDecode feeds arbitrary records to the decoder. It must fail
// gracefully, never panic.
func FuzzSessionDecode(f *testing.F) {
	encoded, err := Encode(&Session{
		UserID:      "user1",
		DisplayName: "fuzz",
		Roles:       []string{"USER"},
		DeviceBound: true,
		IssuedAt:    1700000000,
		ExpiresAt:   1700003600,
	})
	if err == nil {
		f.Add(encoded)
		f.Add(encoded[:10])
	}
	f.Add([]byte{})
	f.Add([]byte{1})
	f.Add([]byte{255, 255, 255})

	f.Fuzz(func(t *testing.T, data []byte) {
		sess, err := Decode(data)
		if err != nil {
			return
		}
		if sess == nil {
			t.Fatal("Decode returned nil session without error")
		}
	})
}
