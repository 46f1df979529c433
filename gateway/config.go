package gateway

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Route forwards every request whose path starts with Prefix to Upstream.
type Route struct {
	Prefix   string
	Upstream string
}

// Config configures a [Gateway].
//
//	Docs: docs/gateway.md
type Config struct {
	ListenAddr string
	AdminAddr  string

	// RefreshURL is the absolute URL the gateway POSTs to on refresh.
	RefreshURL string
	// RefreshPath is the inbound path prefix exempt from refresh and retry.
	RefreshPath string

	AccessCookie  string
	RefreshCookie string

	RefreshTimeout     time.Duration
	MaxReplayBodyBytes int64

	// MaxHeldBodyBytes bounds a 401 body held while refreshing. A larger
	// 401 is passed through without a retry.
	MaxHeldBodyBytes int64

	Routes []Route
}

// DefaultConfig returns the defaults for every field except RefreshURL and
// Routes.
func DefaultConfig() Config {
	return Config{
		ListenAddr:         ":8000",
		AdminAddr:          ":8001",
		RefreshPath:        "/login/v1/refresh",
		AccessCookie:       "jwtAccessToken",
		RefreshCookie:      "jwtRefreshToken",
		RefreshTimeout:     3 * time.Second,
		MaxReplayBodyBytes: 10 << 20,
		MaxHeldBodyBytes:   DefaultMaxHeldBodyBytes,
	}
}

// ErrConfigInvalid wraps every error returned by [Config.Validate].
var ErrConfigInvalid = errors.New("invalid gateway config")

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrConfigInvalid, fmt.Sprintf(format, args...))
	}

	if err := validateAbsoluteURL(c.RefreshURL); err != nil {
		return invalid("RefreshURL: %v", err)
	}
	if !strings.HasPrefix(c.RefreshPath, "/") {
		return invalid("RefreshPath must start with /")
	}
	if c.AccessCookie == "" || c.RefreshCookie == "" {
		return invalid("cookie names must be set")
	}
	if c.AccessCookie == c.RefreshCookie {
		return invalid("AccessCookie and RefreshCookie must differ")
	}
	if c.RefreshTimeout <= 0 {
		return invalid("RefreshTimeout must be > 0")
	}
	if c.MaxReplayBodyBytes <= 0 {
		return invalid("MaxReplayBodyBytes must be > 0")
	}
	if c.MaxHeldBodyBytes <= 0 {
		return invalid("MaxHeldBodyBytes must be > 0")
	}
	if len(c.Routes) == 0 {
		return invalid("at least one route is required")
	}

	seen := make(map[string]bool, len(c.Routes))
	for _, r := range c.Routes {
		if !strings.HasPrefix(r.Prefix, "/") {
			return invalid("route prefix %q must start with /", r.Prefix)
		}
		if seen[r.Prefix] {
			return invalid("duplicate route prefix %q", r.Prefix)
		}
		seen[r.Prefix] = true
		if err := validateAbsoluteURL(r.Upstream); err != nil {
			return invalid("route %q upstream: %v", r.Prefix, err)
		}
	}

	return nil
}

func validateAbsoluteURL(raw string) error {
	if raw == "" {
		return errors.New("must be set")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("scheme must be http or https")
	}
	if u.Host == "" {
		return errors.New("host must be set")
	}
	return nil
}
