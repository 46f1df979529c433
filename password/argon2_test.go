package password

import (
	"errors"
	"strings"
	"testing"
)

// cheap keeps the suite fast while staying at the enforced floor.
func cheap() Config {
	return Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func mustHasher(t *testing.T, cfg Config) *Argon2 {
	t.Helper()
	h, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	return h
}

func TestHashRoundTrip(t *testing.T) {
	h := mustHasher(t, cheap())

	encoded, err := h.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", encoded)
	}

	for pw, want := range map[string]bool{
		"correct horse battery":  true,
		"correct horse battery ": false,
		"Correct horse battery":  false,
	} {
		ok, err := h.Verify(pw, encoded)
		if err != nil {
			t.Fatalf("Verify(%q): %v", pw, err)
		}
		if ok != want {
			t.Fatalf("Verify(%q) = %v, want %v", pw, ok, want)
		}
	}
}

func TestHashSaltsEveryCall(t *testing.T) {
	h := mustHasher(t, cheap())
	a, _ := h.Hash("same-password-twice")
	b, _ := h.Hash("same-password-twice")
	if a == b {
		t.Fatal("two hashes of one password must differ")
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"memory":      func(c *Config) { c.Memory = 4096 },
		"time":        func(c *Config) { c.Time = 0 },
		"parallelism": func(c *Config) { c.Parallelism = 0 },
		"salt":        func(c *Config) { c.SaltLength = 8 },
		"key":         func(c *Config) { c.KeyLength = 8 },
	} {
		cfg := cheap()
		mutate(&cfg)
		if _, err := NewArgon2(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}

func TestHashLengthBounds(t *testing.T) {
	cfg := cheap()
	cfg.MaxPasswordBytes = 64
	h := mustHasher(t, cfg)

	cases := []struct {
		pw   string
		want error
	}{
		{"", ErrPasswordTooShort},
		{"short", ErrPasswordTooShort},
		{strings.Repeat("a", 10), nil},
		{strings.Repeat("b", 64), nil},
		{strings.Repeat("c", 65), ErrPasswordTooLong},
	}
	for _, tc := range cases {
		if _, err := h.Hash(tc.pw); !errors.Is(err, tc.want) {
			t.Fatalf("Hash(len %d) = %v, want %v", len(tc.pw), err, tc.want)
		}
	}

	encoded, err := h.Hash("valid-password-123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if _, err := h.Verify(strings.Repeat("c", 65), encoded); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("Verify of oversized input: %v", err)
	}
}

func TestDefaultMaxPasswordBytesApplied(t *testing.T) {
	h := mustHasher(t, cheap())

	if _, err := h.Hash(strings.Repeat("d", DefaultMaxPasswordBytes+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	if _, err := h.Hash(strings.Repeat("e", DefaultMaxPasswordBytes)); err != nil {
		t.Fatalf("password of exactly %d bytes rejected: %v", DefaultMaxPasswordBytes, err)
	}
}

func TestVerifyRejectsMalformedHashes(t *testing.T) {
	h := mustHasher(t, cheap())
	good, err := h.Hash("malformed-hash-test")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	bad := map[string]string{
		"not phc":       "not-a-phc-hash",
		"argon2i":       strings.Replace(good, "$argon2id$", "$argon2i$", 1),
		"old version":   strings.Replace(good, "$v=19$", "$v=18$", 1),
		"reordered":     strings.Replace(good, "m=8192,t=1,p=1", "t=1,m=8192,p=1", 1),
		"trailing":      strings.Replace(good, "p=1$", "p=1,x=2$", 1),
		"weak memory":   strings.Replace(good, "m=8192", "m=1024", 1),
		"salt encoding": strings.Replace(good, "$v=19$m=8192,t=1,p=1$", "$v=19$m=8192,t=1,p=1$!!", 1),
		"empty key":     good[:strings.LastIndex(good, "$")+1],
	}
	for name, encoded := range bad {
		if _, err := h.Verify("malformed-hash-test", encoded); !errors.Is(err, ErrInvalidHash) {
			t.Fatalf("%s: expected ErrInvalidHash, got %v", name, err)
		}
	}
}

func TestStale(t *testing.T) {
	weak := mustHasher(t, cheap())
	encoded, err := weak.Hash("stale-hash-check")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if stale, err := weak.Stale(encoded); err != nil || stale {
		t.Fatalf("same parameters: stale=%v err=%v", stale, err)
	}

	stronger := cheap()
	stronger.Time = 2
	if stale, err := mustHasher(t, stronger).Stale(encoded); err != nil || !stale {
		t.Fatalf("stronger time cost: stale=%v err=%v", stale, err)
	}

	longerKey := cheap()
	longerKey.KeyLength = 64
	if stale, err := mustHasher(t, longerKey).Stale(encoded); err != nil || !stale {
		t.Fatalf("different key length: stale=%v err=%v", stale, err)
	}

	if _, err := weak.Stale("garbage"); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("garbage: %v", err)
	}
}

func TestVerifyAbsentAlwaysFails(t *testing.T) {
	h := mustHasher(t, cheap())
	for _, pw := range []string{"", "anything-at-all", strings.Repeat("x", DefaultMaxPasswordBytes+1)} {
		if h.VerifyAbsent(pw) {
			t.Fatalf("VerifyAbsent(%d bytes) returned true", len(pw))
		}
	}
}
