package tokengate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/tokengate/internal/audit"
	"github.com/MrEthical07/tokengate/internal/flows"
	"github.com/MrEthical07/tokengate/internal/rate"
	"github.com/MrEthical07/tokengate/jwt"
	"github.com/MrEthical07/tokengate/password"
	"github.com/MrEthical07/tokengate/session"
)

// Engine is the authentication service core: it checks credentials, opens
// and rotates refresh sessions and mints access tokens. Build one with
// [New]; all methods are safe for concurrent use.
//
//	Docs: docs/engine.md
type Engine struct {
	config       Config
	sessionStore *session.Store
	rateLimiter  *rate.Limiter
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	passwordHash *password.Argon2
	jwtManager   *jwt.Manager
	userProvider UserProvider
	logger       *slog.Logger
	flows        flows.Service
}

// Close drains the audit dispatcher. The Redis client is owned by the
// caller and left open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// SessionStore exposes the underlying store for health checks and tooling.
func (e *Engine) SessionStore() *session.Store {
	return e.sessionStore
}

// Ping checks the Redis backend and reports its latency.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e == nil || e.sessionStore == nil {
		return 0, ErrEngineNotReady
	}
	return e.sessionStore.Ping(ctx)
}

// HashPassword hashes plaintext with the engine's Argon2id parameters.
func (e *Engine) HashPassword(plaintext string) (string, error) {
	if e == nil || e.passwordHash == nil {
		return "", ErrEngineNotReady
	}
	return e.passwordHash.Hash(plaintext)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.flows.Initialized()
}

// fingerprintInput returns the user agent to bind or check, or nil when
// binding is off or no user agent was attached to ctx.
func (e *Engine) fingerprintInput(ctx context.Context) *string {
	if !e.config.Security.EnableUserAgentBinding {
		return nil
	}
	ua, ok := userAgentFromContext(ctx)
	if !ok {
		return nil
	}
	return &ua
}

func (e *Engine) issueSession(ctx context.Context, id session.Identity, fingerprintInput *string) (string, error) {
	handle, err := e.sessionStore.Issue(ctx, id, e.config.Session.TTL, fingerprintInput)
	if err != nil {
		return "", err
	}
	e.metricInc(MetricSessionCreated)
	return handle, nil
}

func (e *Engine) issueAccess(id session.Identity) (string, error) {
	return e.jwtManager.Encode(jwt.Principal{
		UserID:      id.UserID,
		DisplayName: id.DisplayName,
		Roles:       id.Roles,
	})
}

func (e *Engine) lookupUser(ctx context.Context, username string) (flows.LoginUser, error) {
	rec, err := e.userProvider.GetUserByUsername(ctx, username)
	if err != nil {
		return flows.LoginUser{}, err
	}
	return flows.LoginUser{
		UserID:       rec.UserID,
		DisplayName:  rec.DisplayName,
		PasswordHash: rec.PasswordHash,
		Roles:        rec.Roles,
	}, nil
}

func (e *Engine) initFlowDeps() {
	warn := func(msg string, args ...any) {
		e.logger.Warn(msg, args...)
	}
	e.flows = flows.New(flows.Deps{
		Login: flows.LoginDeps{
			ClientIPFromContext: clientIPFromContext,
			FingerprintInput:    e.fingerprintInput,
			LookupUser:          e.lookupUser,
			UserNotFound:        ErrUserNotFound,
			VerifyPassword:      e.passwordHash.Verify,
			VerifyAbsent:        e.passwordHash.VerifyAbsent,
			HashStale:           e.passwordHash.Stale,
			IssueSession:        e.issueSession,
			IssueAccess:         e.issueAccess,
			DefaultRoles:        []string{e.config.DefaultRole},
			RateLimiter:         e.rateLimiter,
			RateLimited:         rate.ErrRateLimited,
			Warn:                warn,
		},
		Refresh: flows.RefreshDeps{
			FingerprintInput: e.fingerprintInput,
			IssueSession:     e.issueSession,
			IssueAccess:      e.issueAccess,
			Sessions:         e.sessionStore,
			SessionNotFound:  session.ErrSessionNotFound,
			RateLimiter:      e.rateLimiter,
			RateLimited:      rate.ErrRateLimited,
		},
		Validate: flows.ValidateDeps{
			DecodeAccess: e.jwtManager.Decode,
		},
		Logout: flows.LogoutDeps{
			Sessions: e.sessionStore,
		},
	})
}

func (e *Engine) loginResult(id session.Identity, access, handle string) *LoginResult {
	return &LoginResult{
		AccessToken:   access,
		RefreshHandle: handle,
		AccessTTL:     e.config.JWT.AccessTTL,
		SessionTTL:    e.config.Session.TTL,
		User: UserInfo{
			UserID:      id.UserID,
			DisplayName: id.DisplayName,
			Roles:       append([]string(nil), id.Roles...),
		},
	}
}

// Login verifies username and password and opens a refresh session bound
// to the user agent attached with [WithUserAgent].
//
// Unknown users and wrong passwords both return [ErrInvalidCredentials].
//
//	Flow: rate check -> lookup -> argon2id verify -> issue session -> mint access token
//	Docs: docs/flows.md#login
func (e *Engine) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Login(ctx, username, password)
	switch res.Failure {
	case flows.LoginFailureNone:
		e.metricInc(MetricLoginSuccess)
		e.emitAudit(ctx, auditEventLoginSuccess, true, res.Identity.UserID, res.RefreshHandle, nil, nil)
		return e.loginResult(res.Identity, res.AccessToken, res.RefreshHandle), nil

	case flows.LoginFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", ErrLoginRateLimited, func() map[string]string {
			return map[string]string{"identifier": username}
		})
		return nil, ErrLoginRateLimited

	case flows.LoginFailureInvalidCredentials:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"identifier": username, "reason": res.Reason}
		})
		return nil, ErrInvalidCredentials

	case flows.LoginFailureIssueSession:
		e.metricInc(MetricLoginFailure)
		err := errors.Join(ErrSessionCreationFailed, res.Err)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.Identity.UserID, "", err, nil)
		return nil, err

	case flows.LoginFailureIssueAccess:
		e.metricInc(MetricLoginFailure)
		// Do not leave a session behind that the client never learned about.
		if _, err := e.sessionStore.Revoke(ctx, res.RefreshHandle); err != nil {
			e.logger.Warn("orphan session not revoked", "error", err)
		}
		err := errors.Join(ErrTokenIssue, res.Err)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.Identity.UserID, "", err, nil)
		return nil, err

	default:
		e.metricInc(MetricLoginFailure)
		err := errors.Join(ErrBackendUnavailable, res.Err)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", err, nil)
		return nil, err
	}
}

// Refresh rotates the session behind handle and mints a new access token.
// The presented handle is single use: after a successful call it never
// validates again.
//
// Of two concurrent calls with the same handle exactly one succeeds; the
// other returns [ErrRefreshInvalid].
//
//	Flow: rate check -> validate(+fingerprint) -> revoke -> issue -> mint access token
//	Docs: docs/flows.md#refresh
func (e *Engine) Refresh(ctx context.Context, handle string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if handle == "" {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrRefreshMissing
	}

	res := e.flows.Refresh(ctx, handle)
	switch res.Failure {
	case flows.RefreshFailureNone:
		e.metricInc(MetricRefreshSuccess)
		e.metricInc(MetricSessionRevoked)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, res.UserID, res.RefreshHandle, nil, nil)
		return e.loginResult(res.Identity, res.AccessToken, res.RefreshHandle), nil

	case flows.RefreshFailureRateLimited:
		e.metricInc(MetricRefreshRateLimited)
		e.emitAudit(ctx, auditEventRefreshRateLimited, false, "", handle, ErrRefreshRateLimited, nil)
		return nil, ErrRefreshRateLimited

	case flows.RefreshFailureSessionNotFound:
		e.metricInc(MetricRefreshFailure)
		if errors.Is(res.Err, session.ErrFingerprintMismatch) {
			e.metricInc(MetricRefreshFingerprintMismatch)
			e.metricInc(MetricSessionRevoked)
			e.emitAudit(ctx, auditEventRefreshFingerprintMismatch, false, "", handle, res.Err, nil)
			return nil, ErrRefreshInvalid
		}
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", handle, ErrRefreshInvalid, nil)
		return nil, ErrRefreshInvalid

	case flows.RefreshFailureRotationLost:
		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricRefreshRotationLost)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, handle, ErrRefreshInvalid, func() map[string]string {
			return map[string]string{"reason": "rotation_lost"}
		})
		return nil, ErrRefreshInvalid

	case flows.RefreshFailureIssueSession:
		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricSessionRevoked)
		err := errors.Join(ErrSessionCreationFailed, res.Err)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, handle, err, nil)
		return nil, err

	case flows.RefreshFailureIssueAccess:
		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricSessionRevoked)
		if _, err := e.sessionStore.Revoke(ctx, res.RefreshHandle); err != nil {
			e.logger.Warn("orphan session not revoked", "error", err)
		}
		err := errors.Join(ErrTokenIssue, res.Err)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, handle, err, nil)
		return nil, err

	default:
		e.metricInc(MetricRefreshFailure)
		err := errors.Join(ErrBackendUnavailable, res.Err)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, handle, err, nil)
		return nil, err
	}
}

// ValidateAccess verifies an access token without touching Redis.
//
//	Performance: 0 Redis round trips, one signature verification.
//	Docs: docs/tokens.md
func (e *Engine) ValidateAccess(ctx context.Context, token string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	res := e.flows.Validate(token)
	e.metrics.Observe(MetricValidateLatency, time.Since(start))
	if res.Err != nil {
		e.metricInc(MetricValidateFailure)
		return nil, errors.Join(ErrUnauthorized, res.Err)
	}
	e.metricInc(MetricValidateSuccess)

	p := res.Claims.Principal()
	out := &AuthResult{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		Roles:       p.Roles,
	}
	if res.Claims.IssuedAt != nil {
		out.IssuedAt = res.Claims.IssuedAt.Time
	}
	if res.Claims.ExpiresAt != nil {
		out.ExpiresAt = res.Claims.ExpiresAt.Time
	}
	return out, nil
}

// Logout revokes the session behind handle. Unknown, expired or empty
// handles succeed silently.
//
//	Docs: docs/flows.md#logout
func (e *Engine) Logout(ctx context.Context, handle string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	res := e.flows.Logout(ctx, handle)
	if res.Err != nil {
		err := errors.Join(ErrSessionInvalidationFailed, res.Err)
		e.emitAudit(ctx, auditEventLogoutSession, false, "", handle, err, nil)
		return err
	}

	e.metricInc(MetricLogout)
	if res.Revoked > 0 {
		e.metricInc(MetricSessionRevoked)
	}
	e.emitAudit(ctx, auditEventLogoutSession, true, "", handle, nil, nil)
	return nil
}

// LogoutAll revokes every session of userID and returns how many were live.
// Sessions of other users are untouched.
//
//	Docs: docs/flows.md#logout
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}

	res := e.flows.LogoutAll(ctx, userID)
	if res.Err != nil {
		err := errors.Join(ErrSessionInvalidationFailed, res.Err)
		e.emitAudit(ctx, auditEventLogoutAll, false, userID, "", err, nil)
		return 0, err
	}

	e.metricInc(MetricLogoutAll)
	for i := 0; i < res.Revoked; i++ {
		e.metricInc(MetricSessionRevoked)
	}
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, "", nil, nil)
	return res.Revoked, nil
}
