package jwt

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func fuzzManager(f *testing.F) *Manager {
	f.Helper()
	mgr, err := NewManager(Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte(strings.Repeat("k", 32)),
		Issuer:        "tokengate-fuzz",
		MaxFutureIAT:  time.Minute,
	})
	if err != nil {
		f.Fatal(err)
	}
	return mgr
}

// FuzzDecode feeds arbitrary strings to the verifier. Malformed input is
// rejected with an error, never a panic, and anything accepted must have
// been minted by this manager.
func FuzzDecode(f *testing.F) {
	mgr := fuzzManager(f)

	minted, err := mgr.Encode(Principal{UserID: "u-fuzz", DisplayName: "fuzz", Roles: []string{"USER"}})
	if err != nil {
		f.Fatal(err)
	}
	head, rest, _ := strings.Cut(minted, ".")

	f.Add(minted)
	f.Add("Bearer " + minted)
	f.Add(minted + "x")
	f.Add("eyJhbGciOiJub25lIn0." + rest)
	f.Add(head + ".e30.")
	f.Add("")
	f.Add("..")
	f.Add("not.a.jwt")

	f.Fuzz(func(t *testing.T, input string) {
		claims, err := mgr.Decode(input)
		if err != nil {
			if claims != nil {
				t.Fatal("Decode returned claims alongside an error")
			}
			return
		}
		if claims.Subject != "u-fuzz" || claims.Type != TokenTypeAccess {
			t.Fatalf("accepted a token this manager never minted: %+v", claims)
		}
	})
}

// FuzzPrincipalRoundTrip checks that any identity survives Encode/Decode.
func FuzzPrincipalRoundTrip(f *testing.F) {
	mgr := fuzzManager(f)

	f.Add("u-1", "alice", "USER")
	f.Add("7f1c0a5e-0000-4000-8000-000000000000", "관리자", "ADMIN,USER")
	f.Add("u\x00", "", "")

	f.Fuzz(func(t *testing.T, userID, displayName, roles string) {
		// JSON rewrites invalid UTF-8, so only valid strings can round trip.
		if userID == "" || !utf8.ValidString(userID+displayName+roles) {
			return
		}
		in := Principal{UserID: userID, DisplayName: displayName}
		if roles != "" {
			in.Roles = strings.Split(roles, ",")
		}

		token, err := mgr.Encode(in)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		claims, err := mgr.Decode(token)
		if err != nil {
			t.Fatalf("Decode of a freshly minted token: %v", err)
		}
		out := claims.Principal()
		if out.UserID != in.UserID || out.DisplayName != in.DisplayName || len(out.Roles) != len(in.Roles) {
			t.Fatalf("round trip changed identity: %+v -> %+v", in, out)
		}
	})
}
