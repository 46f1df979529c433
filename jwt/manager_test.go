package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"sync"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newHSManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessTTL:     ttl,
		SigningMethod: MethodHS256,
		PrivateKey:    testSecret,
		Issuer:        "tokengate",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func accessClaims(sub string, exp time.Time) Claims {
	return Claims{
		Type: TokenTypeAccess,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "tokengate",
			IssuedAt:  gjwt.NewNumericDate(exp.Add(-time.Minute)),
			ExpiresAt: gjwt.NewNumericDate(exp),
		},
	}
}

func TestEncodeDecodeRoundTripCarriesPrincipal(t *testing.T) {
	m := newHSManager(t, 5*time.Minute)

	token, err := m.Encode(Principal{UserID: "42", DisplayName: "alice", Roles: []string{"USER", "ADMIN"}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	claims, err := m.Decode(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	p := claims.Principal()
	if p.UserID != "42" || p.DisplayName != "alice" {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if len(p.Roles) != 2 || p.Roles[0] != "USER" || p.Roles[1] != "ADMIN" {
		t.Fatalf("roles not preserved in order: %v", p.Roles)
	}
	if claims.Issuer != "tokengate" {
		t.Fatalf("expected issuer tokengate, got %q", claims.Issuer)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 5*time.Minute {
		t.Fatalf("expected 5m lifetime, got %v", got)
	}
}

func TestEncodeIsDeterministicForFixedClock(t *testing.T) {
	m := newHSManager(t, time.Minute)
	fixed := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return fixed }

	p := Principal{UserID: "u1", DisplayName: "bob", Roles: []string{"USER"}}
	a, err := m.Encode(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, err := m.Encode(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if a != b {
		t.Fatal("expected identical tokens for identical claims and clock")
	}
}

func TestEncodeRejectsEmptySubject(t *testing.T) {
	m := newHSManager(t, time.Minute)
	if _, err := m.Encode(Principal{}); !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("expected ErrMissingSubject, got %v", err)
	}
}

func TestDecodeRejectsExpiredToken(t *testing.T) {
	m := newHSManager(t, time.Minute)
	issued := time.Now().Add(-2 * time.Minute)
	m.now = func() time.Time { return issued }
	token, err := m.Encode(Principal{UserID: "u1"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	m.now = time.Now
	if _, err := m.Decode(token); !errors.Is(err, gjwt.ErrTokenExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestDecodeRejectsNonAccessType(t *testing.T) {
	m := newHSManager(t, time.Minute)
	claims := accessClaims("u1", time.Now().Add(time.Minute))
	claims.Type = "refresh"
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Decode(token); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("expected ErrWrongTokenType, got %v", err)
	}
}

func TestDecodeRejectsTamperedSignature(t *testing.T) {
	m := newHSManager(t, time.Minute)
	token, err := m.Encode(Principal{UserID: "u1"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	other, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("ffffffffffffffffffffffffffffffff"), Issuer: "tokengate"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := other.Decode(token); err == nil {
		t.Fatal("expected signature mismatch to be rejected")
	}
}

func TestDecodeRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, accessClaims("u1", time.Now().Add(time.Minute))).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.Decode(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestDecodeIssuerAudienceAndLeeway(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     priv.Public().(ed25519.PublicKey),
		Issuer:        "tokengate",
		Audience:      "api",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	access, err := m.Encode(Principal{UserID: "u"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := m.Decode(access); err != nil {
		t.Fatalf("expected valid token to decode: %v", err)
	}

	sign := func(c Claims) string {
		s, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, c).SignedString(priv)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}

	wrongIssuer := accessClaims("u", time.Now().Add(time.Minute))
	wrongIssuer.Issuer = "other"
	wrongIssuer.Audience = gjwt.ClaimStrings{"api"}
	if _, err := m.Decode(sign(wrongIssuer)); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}

	wrongAudience := accessClaims("u", time.Now().Add(time.Minute))
	wrongAudience.Audience = gjwt.ClaimStrings{"other-api"}
	if _, err := m.Decode(sign(wrongAudience)); err == nil {
		t.Fatal("expected wrong audience to fail")
	}

	withinLeeway := accessClaims("u", time.Now().Add(-15*time.Second))
	withinLeeway.Audience = gjwt.ClaimStrings{"api"}
	if _, err := m.Decode(sign(withinLeeway)); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}

	expired := accessClaims("u", time.Now().Add(-2*time.Minute))
	expired.Audience = gjwt.ClaimStrings{"api"}
	if _, err := m.Decode(sign(expired)); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestDecodeUnknownKidFails(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv1,
		PublicKey:     pub1,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub1},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := accessClaims("u", time.Now().Add(time.Minute))
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = "k2"
	token, err := tok.SignedString(priv1)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Decode(token); err == nil {
		t.Fatal("expected unknown kid failure")
	}

	tok2 := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok2.Header["kid"] = "k1"
	good, _ := tok2.SignedString(priv1)
	if _, err := m.Decode(good); err != nil {
		t.Fatalf("expected known kid token to pass: %v", err)
	}

	m2, _ := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub2, VerifyKeys: map[string][]byte{"k2": pub2}})
	if _, err := m2.Decode(good); err == nil {
		t.Fatal("expected decode failure with mismatched key set")
	}
}

func TestNewManagerRejectsShortHMACSecret(t *testing.T) {
	_, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("short")})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestManagerConcurrentEncodeDecode(t *testing.T) {
	m := newHSManager(t, time.Minute)

	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			token, err := m.Encode(Principal{UserID: "u", Roles: []string{"USER"}})
			if err != nil {
				errs <- err
				return
			}
			if _, err := m.Decode(token); err != nil {
				errs <- err
			}
		}()
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent encode/decode failed: %v", err)
	}
}
