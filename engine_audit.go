package tokengate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/MrEthical07/tokengate/session"
)

const (
	auditEventLoginSuccess               = "login_success"
	auditEventLoginFailure               = "login_failure"
	auditEventLoginRateLimited           = "login_rate_limited"
	auditEventRefreshSuccess             = "refresh_success"
	auditEventRefreshInvalid             = "refresh_invalid"
	auditEventRefreshRateLimited         = "refresh_rate_limited"
	auditEventRefreshFingerprintMismatch = "refresh_fingerprint_mismatch"
	auditEventLogoutSession              = "logout_session"
	auditEventLogoutAll                  = "logout_all"
)

// AuditErrorCode is the stable error code placed in [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrUnauthorized          AuditErrorCode = "unauthorized"
	auditErrInvalidCredentials    AuditErrorCode = "invalid_credentials"
	auditErrRateLimited           AuditErrorCode = "rate_limited"
	auditErrRefreshInvalid        AuditErrorCode = "refresh_invalid"
	auditErrFingerprintMismatch   AuditErrorCode = "fingerprint_mismatch"
	auditErrSessionCreationFailed AuditErrorCode = "session_creation_failed"
	auditErrSessionInvalidation   AuditErrorCode = "session_invalidation_failed"
	auditErrUnavailable           AuditErrorCode = "backend_unavailable"
	auditErrInternal              AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	handle string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		EventType:  eventType,
		UserID:     userID,
		SessionRef: sessionRef(handle),
		IP:         clientIPFromContext(ctx),
		Success:    success,
		Metadata:   metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// sessionRef shortens a refresh handle to a non-reversible reference so
// audit records never carry a usable credential.
func sessionRef(handle string) string {
	if handle == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(handle))
	return hex.EncodeToString(sum[:6])
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrRefreshRateLimited):
		return auditErrRateLimited
	case errors.Is(err, session.ErrFingerprintMismatch):
		return auditErrFingerprintMismatch
	case errors.Is(err, ErrRefreshInvalid),
		errors.Is(err, ErrRefreshMissing):
		return auditErrRefreshInvalid
	case errors.Is(err, ErrSessionCreationFailed):
		return auditErrSessionCreationFailed
	case errors.Is(err, ErrSessionInvalidationFailed):
		return auditErrSessionInvalidation
	case errors.Is(err, ErrBackendUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
