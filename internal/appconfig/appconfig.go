// Package appconfig loads the configuration of the tokengate binaries
// from an optional YAML file and TOKENGATE_* environment variables.
//
// Environment keys are the dotted file keys upper-cased with "." replaced
// by "_", e.g. auth.signing_key -> TOKENGATE_AUTH_SIGNING_KEY.
package appconfig

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/tokengate"
	"github.com/MrEthical07/tokengate/gateway"
	"github.com/MrEthical07/tokengate/internal/redisconn"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TOKENGATE"

// ErrInvalid wraps every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config is the merged configuration of all binaries.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Trace   TraceConfig   `mapstructure:"trace"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Gateway GatewayConfig `mapstructure:"gateway"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

// TraceConfig controls the tracer provider. Spans are sampled at
// SampleRatio unless the caller's context is already sampled.
type TraceConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// RedisConfig locates the session store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig configures the auth server and its engine.
type AuthConfig struct {
	Listen         string        `mapstructure:"listen"`
	UserDB         string        `mapstructure:"user_db"`
	SigningKey     string        `mapstructure:"signing_key"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTTL      time.Duration `mapstructure:"access_ttl"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	CookieDomain   string        `mapstructure:"cookie_domain"`
	CookieSecure   bool          `mapstructure:"cookie_secure"`
	CookieSameSite string        `mapstructure:"cookie_same_site"`
	BindUserAgent  bool          `mapstructure:"bind_user_agent"`
	Audit          bool          `mapstructure:"audit"`
	Shutdown       time.Duration `mapstructure:"shutdown_timeout"`
}

// GatewayConfig configures the edge gateway.
type GatewayConfig struct {
	Listen             string        `mapstructure:"listen"`
	Admin              string        `mapstructure:"admin"`
	RefreshURL         string        `mapstructure:"refresh_url"`
	RefreshPath        string        `mapstructure:"refresh_path"`
	RefreshTimeout     time.Duration `mapstructure:"refresh_timeout"`
	MaxReplayBodyBytes int64         `mapstructure:"max_replay_body_bytes"`
	MaxHeldBodyBytes   int64         `mapstructure:"max_held_body_bytes"`
	Routes             []RouteConfig `mapstructure:"routes"`
	Shutdown           time.Duration `mapstructure:"shutdown_timeout"`
}

// RouteConfig is one gateway route.
type RouteConfig struct {
	Prefix   string `mapstructure:"prefix"`
	Upstream string `mapstructure:"upstream"`
}

func setDefaults(v *viper.Viper) {
	engine := tokengate.DefaultConfig()
	gw := gateway.DefaultConfig()

	v.SetDefault("log.format", "json")
	v.SetDefault("log.level", "info")

	v.SetDefault("trace.service_name", "tokengate")
	v.SetDefault("trace.sample_ratio", 0.1)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.listen", ":8081")
	v.SetDefault("auth.user_db", "file:tokengate-users.db")
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.issuer", engine.JWT.Issuer)
	v.SetDefault("auth.access_ttl", engine.JWT.AccessTTL)
	v.SetDefault("auth.session_ttl", engine.Session.TTL)
	v.SetDefault("auth.cookie_domain", "")
	v.SetDefault("auth.cookie_secure", engine.Cookie.Secure)
	v.SetDefault("auth.cookie_same_site", "lax")
	v.SetDefault("auth.bind_user_agent", engine.Security.EnableUserAgentBinding)
	v.SetDefault("auth.audit", engine.Audit.Enabled)
	v.SetDefault("auth.shutdown_timeout", 10*time.Second)

	v.SetDefault("gateway.listen", gw.ListenAddr)
	v.SetDefault("gateway.admin", gw.AdminAddr)
	v.SetDefault("gateway.refresh_url", "http://127.0.0.1:8081"+gw.RefreshPath)
	v.SetDefault("gateway.refresh_path", gw.RefreshPath)
	v.SetDefault("gateway.refresh_timeout", gw.RefreshTimeout)
	v.SetDefault("gateway.max_replay_body_bytes", gw.MaxReplayBodyBytes)
	v.SetDefault("gateway.max_held_body_bytes", gw.MaxHeldBodyBytes)
	v.SetDefault("gateway.shutdown_timeout", 10*time.Second)
}

// Bind wires v for tokengate: defaults, env prefix and key replacer.
func Bind(v *viper.Viper) {
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads path (when non-empty) into a viper bound with [Bind] and
// decodes the result.
func Load(path string) (Config, error) {
	v := viper.New()
	Bind(v)
	return Decode(v, path)
}

// Decode reads path (when non-empty) into v and decodes it.
func Decode(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	// The env form of gateway.routes is the compact string.
	if raw, ok := v.Get("gateway.routes").(string); ok {
		parsed, err := ParseRoutes(raw)
		if err != nil {
			return Config{}, err
		}
		routes := make([]map[string]any, 0, len(parsed))
		for _, r := range parsed {
			routes = append(routes, map[string]any{"prefix": r.Prefix, "upstream": r.Upstream})
		}
		v.Set("gateway.routes", routes)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// ParseRoutes parses the compact "prefix=url,prefix=url" form used by
// TOKENGATE_GATEWAY_ROUTES.
func ParseRoutes(s string) ([]RouteConfig, error) {
	var out []RouteConfig
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		prefix, upstream, ok := strings.Cut(part, "=")
		if !ok || prefix == "" || upstream == "" {
			return nil, fmt.Errorf("%w: route %q must be prefix=upstream", ErrInvalid, part)
		}
		out = append(out, RouteConfig{Prefix: strings.TrimSpace(prefix), Upstream: strings.TrimSpace(upstream)})
	}
	return out, nil
}

// ParseSameSite maps "lax", "strict", "none" or "default".
func ParseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	case "default":
		return http.SameSiteDefaultMode, nil
	default:
		return 0, fmt.Errorf("%w: unknown cookie same_site %q", ErrInvalid, s)
	}
}

// EngineConfig overlays the auth settings on [tokengate.DefaultConfig].
// The result is validated by the engine builder.
func (c Config) EngineConfig() (tokengate.Config, error) {
	out := tokengate.DefaultConfig()

	sameSite, err := ParseSameSite(c.Auth.CookieSameSite)
	if err != nil {
		return out, err
	}

	out.JWT.PrivateKey = []byte(c.Auth.SigningKey)
	out.JWT.Issuer = c.Auth.Issuer
	out.JWT.AccessTTL = c.Auth.AccessTTL
	out.Session.TTL = c.Auth.SessionTTL
	out.Cookie.Domain = c.Auth.CookieDomain
	out.Cookie.Secure = c.Auth.CookieSecure
	out.Cookie.SameSite = sameSite
	out.Security.EnableUserAgentBinding = c.Auth.BindUserAgent
	out.Audit.Enabled = c.Auth.Audit
	return out, out.Validate()
}

// GatewayConfig converts the gateway section. Cookie names follow the
// engine defaults.
func (c Config) GatewayConfig() (gateway.Config, error) {
	out := gateway.DefaultConfig()
	engine := tokengate.DefaultConfig()

	out.ListenAddr = c.Gateway.Listen
	out.AdminAddr = c.Gateway.Admin
	out.RefreshURL = c.Gateway.RefreshURL
	out.RefreshPath = c.Gateway.RefreshPath
	out.RefreshTimeout = c.Gateway.RefreshTimeout
	out.MaxReplayBodyBytes = c.Gateway.MaxReplayBodyBytes
	out.MaxHeldBodyBytes = c.Gateway.MaxHeldBodyBytes
	out.AccessCookie = engine.Cookie.AccessName
	out.RefreshCookie = engine.Cookie.RefreshName
	for _, r := range c.Gateway.Routes {
		out.Routes = append(out.Routes, gateway.Route{Prefix: r.Prefix, Upstream: r.Upstream})
	}
	return out, out.Validate()
}

// RedisOptions converts the redis section.
func (c Config) RedisOptions() redisconn.Options {
	return redisconn.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}
}
