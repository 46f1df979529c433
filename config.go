package tokengate

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/tokengate/password"
)

// Config is the engine configuration. Start from [DefaultConfig] and
// override what differs; a Config is treated as immutable once passed to the
// [Builder].
//
//	Docs: docs/config.md
type Config struct {
	JWT         JWTConfig
	Session     SessionConfig
	Cookie      CookieConfig
	Password    PasswordConfig
	Security    SecurityConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
	DefaultRole string
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls access-token minting and verification.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls refresh sessions.
type SessionConfig struct {
	RedisPrefix string
	TTL         time.Duration
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig names and scopes the two credential cookies. Both are always
// HttpOnly.
type CookieConfig struct {
	AccessName  string
	RefreshName string
	Domain      string
	Path        string
	Secure      bool
	SameSite    http.SameSite
}

// PasswordConfig holds the Argon2id cost parameters.
type PasswordConfig struct {
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds throttling and device-binding switches.
type SecurityConfig struct {
	EnableUserAgentBinding  bool
	EnableIPThrottle        bool
	EnableRefreshThrottle   bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
	RateLimitPrefix         string
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a configuration with every field set except the
// signing key.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "hs256",
			Issuer:        "tokengate",
			MaxFutureIAT:  10 * time.Minute,
		},
		Session: SessionConfig{
			RedisPrefix: "rtsid",
			TTL:         7 * 24 * time.Hour,
		},
		Cookie: CookieConfig{
			AccessName:  "jwtAccessToken",
			RefreshName: "jwtRefreshToken",
			Path:        "/",
			Secure:      true,
			SameSite:    http.SameSiteLaxMode,
		},
		Password: PasswordConfig{
			Memory:           65536,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MaxPasswordBytes: password.DefaultMaxPasswordBytes,
		},
		Security: SecurityConfig{
			EnableUserAgentBinding:  true,
			EnableIPThrottle:        true,
			EnableRefreshThrottle:   true,
			MaxLoginAttempts:        5,
			LoginCooldownDuration:   15 * time.Minute,
			MaxRefreshAttempts:      20,
			RefreshCooldownDuration: time.Minute,
			RateLimitPrefix:         "tgrl",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		DefaultRole: "USER",
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// ErrConfigInvalid wraps every error returned by [Config.Validate].
var ErrConfigInvalid = errors.New("invalid config")

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	invalid := func(msg string) error {
		return fmt.Errorf("%w: %s", ErrConfigInvalid, msg)
	}

	// JWT
	if c.JWT.AccessTTL <= 0 {
		return invalid("JWT AccessTTL must be > 0")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return invalid("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 || len(c.JWT.PublicKey) == 0 {
			return invalid("ed25519 requires PrivateKey and PublicKey")
		}
	default:
		return invalid("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return invalid("JWT Leeway must be within [0, 2m]")
	}
	if c.JWT.MaxFutureIAT < 0 {
		return invalid("JWT MaxFutureIAT must be >= 0")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return invalid("JWT Audience must not be blank")
	}

	// Session
	if c.Session.TTL <= 0 {
		return invalid("Session TTL must be > 0")
	}
	if c.JWT.AccessTTL >= c.Session.TTL {
		return invalid("JWT AccessTTL must be shorter than Session TTL")
	}
	if strings.ContainsAny(c.Session.RedisPrefix, " :") {
		return invalid("Session RedisPrefix must not contain spaces or colons")
	}

	// Cookie
	if c.Cookie.AccessName == "" || c.Cookie.RefreshName == "" {
		return invalid("Cookie names must be set")
	}
	if c.Cookie.AccessName == c.Cookie.RefreshName {
		return invalid("Cookie AccessName and RefreshName must differ")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return invalid("Cookie SameSite=None requires Secure")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return invalid("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return invalid("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return invalid("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return invalid("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return invalid("Password KeyLength must be >= 16")
	}
	if c.Password.MaxPasswordBytes < 0 {
		return invalid("Password MaxPasswordBytes must be >= 0")
	}

	// Security
	if c.Security.MaxLoginAttempts <= 0 {
		return invalid("Security MaxLoginAttempts must be > 0")
	}
	if c.Security.LoginCooldownDuration <= 0 {
		return invalid("Security LoginCooldownDuration must be > 0")
	}
	if c.Security.EnableRefreshThrottle {
		if c.Security.MaxRefreshAttempts <= 0 {
			return invalid("Security MaxRefreshAttempts must be > 0")
		}
		if c.Security.RefreshCooldownDuration <= 0 {
			return invalid("Security RefreshCooldownDuration must be > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return invalid("Audit BufferSize must be > 0")
	}

	if strings.TrimSpace(c.DefaultRole) == "" {
		return invalid("DefaultRole must be set")
	}

	return nil
}
