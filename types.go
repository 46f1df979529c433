package tokengate

import (
	"context"
	"io"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/tokengate/internal/audit"
	internalmetrics "github.com/MrEthical07/tokengate/internal/metrics"
)

// UserProvider is the interface callers implement to plug their user
// directory into the engine. The userstore package ships a SQLite one.
//
// GetUserByUsername must return an error matching [ErrUserNotFound] for an
// unknown username.
//
//	Docs: docs/engine.md
type UserProvider interface {
	GetUserByUsername(ctx context.Context, username string) (UserRecord, error)
}

// UserRecord is the directory entry returned by [UserProvider].
type UserRecord struct {
	UserID       string
	Username     string
	DisplayName  string
	PasswordHash string
	Roles        []string
}

// UserInfo is the identity carried by a session and its access tokens.
type UserInfo struct {
	UserID      string   `json:"userId"`
	DisplayName string   `json:"userName"`
	Roles       []string `json:"roles"`
}

// LoginResult is returned by [Engine.Login] and [Engine.Refresh].
type LoginResult struct {
	AccessToken   string
	RefreshHandle string
	AccessTTL     time.Duration
	SessionTTL    time.Duration
	User          UserInfo
}

// AuthResult is returned by [Engine.ValidateAccess]. It carries the
// identity and expiry decoded from a verified access token.
//
//	Docs: docs/tokens.md
type AuthResult struct {
	UserID      string
	DisplayName string
	Roles       []string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// HasRole reports whether role is among the token's roles.
func (r *AuthResult) HasRole(role string) bool {
	if r == nil {
		return false
	}
	for _, have := range r.Roles {
		if have == role {
			return true
		}
	}
	return false
}

// AuditEvent is a structured audit record emitted by the engine.
//
//	Docs: docs/audit.md
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
//
//	Docs: docs/audit.md
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink is an [AuditSink] that logs each event as one structured record.
type SlogSink = internalaudit.SlogSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink creates a [SlogSink] writing through logger.
//
//	Docs: docs/audit.md
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}

// MetricID identifies a specific counter or histogram in the in-process
// metrics system.
//
//	Docs: docs/metrics.md
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess               = internalmetrics.MetricLoginSuccess
	MetricLoginFailure               = internalmetrics.MetricLoginFailure
	MetricLoginRateLimited           = internalmetrics.MetricLoginRateLimited
	MetricRefreshSuccess             = internalmetrics.MetricRefreshSuccess
	MetricRefreshFailure             = internalmetrics.MetricRefreshFailure
	MetricRefreshRateLimited         = internalmetrics.MetricRefreshRateLimited
	MetricRefreshRotationLost        = internalmetrics.MetricRefreshRotationLost
	MetricRefreshFingerprintMismatch = internalmetrics.MetricRefreshFingerprintMismatch
	MetricSessionCreated             = internalmetrics.MetricSessionCreated
	MetricSessionRevoked             = internalmetrics.MetricSessionRevoked
	MetricLogout                     = internalmetrics.MetricLogout
	MetricLogoutAll                  = internalmetrics.MetricLogoutAll
	MetricValidateSuccess            = internalmetrics.MetricValidateSuccess
	MetricValidateFailure            = internalmetrics.MetricValidateFailure
	MetricValidateLatency            = internalmetrics.MetricValidateLatency
)

// Metrics is the lock-free counter set owned by an [Engine].
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance from cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:                 cfg.Enabled,
		EnableLatencyHistograms: cfg.EnableLatencyHistograms,
	})
}
