package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

const (
	algorithm    = "argon2id"
	minPassBytes = 10

	// DefaultMaxPasswordBytes caps password input when Config leaves it unset.
	DefaultMaxPasswordBytes = 1024
)

// Lower bounds enforced on both Config and decoded hashes.
var floor = Params{Memory: 8 * 1024, Time: 1, Parallelism: 1}

const (
	minSaltLength = 16
	minKeyLength  = 16
)

var (
	// ErrPasswordTooShort is returned by Hash for passwords under 10 bytes.
	ErrPasswordTooShort = errors.New("password must be at least 10 bytes")
	// ErrPasswordTooLong is returned for passwords over MaxPasswordBytes.
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
	// ErrInvalidHash is returned for anything that is not a well-formed
	// argon2id PHC string.
	ErrInvalidHash = errors.New("invalid password hash")
	// ErrInvalidConfig is returned by NewArgon2.
	ErrInvalidConfig = errors.New("invalid password config")
)

// Config holds the Argon2id cost parameters.
type Config struct {
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
}

// DefaultConfig returns the parameters used when nothing else is configured.
func DefaultConfig() Config {
	return Config{
		Memory:           64 * 1024,
		Time:             3,
		Parallelism:      2,
		SaltLength:       16,
		KeyLength:        32,
		MaxPasswordBytes: DefaultMaxPasswordBytes,
	}
}

func (c Config) params() Params {
	return Params{Memory: c.Memory, Time: c.Time, Parallelism: c.Parallelism}
}

// Params are the cost parameters carried inside every encoded hash.
type Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
}

func (p Params) String() string {
	return fmt.Sprintf("m=%d,t=%d,p=%d", p.Memory, p.Time, p.Parallelism)
}

func (p Params) below(q Params) bool {
	return p.Memory < q.Memory || p.Time < q.Time || p.Parallelism < q.Parallelism
}

// Argon2 hashes and verifies user directory passwords. It is safe for
// concurrent use.
type Argon2 struct {
	config Config

	decoyOnce sync.Once
	decoy     phc
	decoyErr  error
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	switch {
	case cfg.params().below(floor):
		return nil, fmt.Errorf("%w: cost below m=%d,t=%d,p=%d", ErrInvalidConfig, floor.Memory, floor.Time, floor.Parallelism)
	case cfg.SaltLength < minSaltLength:
		return nil, fmt.Errorf("%w: salt length must be >= %d", ErrInvalidConfig, minSaltLength)
	case cfg.KeyLength < minKeyLength:
		return nil, fmt.Errorf("%w: key length must be >= %d", ErrInvalidConfig, minKeyLength)
	}
	if cfg.MaxPasswordBytes <= 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	return &Argon2{config: cfg}, nil
}

// Hash returns a PHC-encoded argon2id hash of password with a fresh salt.
// The password bytes are used as given, without Unicode normalization.
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>
func (a *Argon2) Hash(password string) (string, error) {
	if len(password) < minPassBytes {
		return "", ErrPasswordTooShort
	}
	if len(password) > a.config.MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	h, err := a.derive(password)
	if err != nil {
		return "", err
	}
	return h.String(), nil
}

// Verify reports whether password matches encodedHash in constant time.
func (a *Argon2) Verify(password, encodedHash string) (bool, error) {
	if len(password) > a.config.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}
	h, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	return h.matches(password), nil
}

// VerifyAbsent spends the same work as a failed Verify against a hash made
// with the current parameters, for logins naming an unknown user. It always
// reports false.
func (a *Argon2) VerifyAbsent(password string) bool {
	a.decoyOnce.Do(func() {
		a.decoy, a.decoyErr = a.derive("tokengate-absent-user")
	})
	if a.decoyErr == nil && len(password) <= a.config.MaxPasswordBytes {
		a.decoy.matches(password)
	}
	return false
}

// Stale reports whether encodedHash was produced with weaker parameters or a
// different key length than the hasher's current ones.
func (a *Argon2) Stale(encodedHash string) (bool, error) {
	h, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	return h.params.below(a.config.params()) || uint32(len(h.key)) != a.config.KeyLength, nil
}

func (a *Argon2) derive(password string) (phc, error) {
	salt := make([]byte, a.config.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return phc{}, err
	}
	p := a.config.params()
	return phc{
		params: p,
		salt:   salt,
		key:    argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Parallelism, a.config.KeyLength),
	}, nil
}

/*
====================================
PHC ENCODING
====================================
*/

type phc struct {
	params Params
	salt   []byte
	key    []byte
}

var b64 = base64.StdEncoding

func (h phc) String() string {
	return "$" + algorithm +
		"$v=" + fmt.Sprint(argon2.Version) +
		"$" + h.params.String() +
		"$" + b64.EncodeToString(h.salt) +
		"$" + b64.EncodeToString(h.key)
}

func (h phc) matches(password string) bool {
	p := h.params
	got := argon2.IDKey([]byte(password), h.salt, p.Time, p.Memory, p.Parallelism, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(got, h.key) == 1
}

func parsePHC(encoded string) (phc, error) {
	invalid := func(msg string) (phc, error) {
		return phc{}, fmt.Errorf("%w: %s", ErrInvalidHash, msg)
	}

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return invalid("want 5 '$'-separated fields")
	}
	if fields[1] != algorithm {
		return invalid("unsupported algorithm")
	}
	if fields[2] != "v="+fmt.Sprint(argon2.Version) {
		return invalid("unsupported argon2 version")
	}

	var p Params
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Parallelism); err != nil {
		return invalid("malformed parameters")
	}
	// Only the canonical rendering is accepted.
	if p.String() != fields[3] {
		return invalid("malformed parameters")
	}
	if p.below(floor) {
		return invalid("parameters below minimum")
	}

	salt, err := b64.DecodeString(fields[4])
	if err != nil || len(salt) < minSaltLength {
		return invalid("bad salt")
	}
	key, err := b64.DecodeString(fields[5])
	if err != nil || len(key) == 0 {
		return invalid("bad key")
	}

	return phc{params: p, salt: salt, key: key}, nil
}
