package tokengate

import "errors"

var (
	// ErrEngineNotReady is returned by methods called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrUnauthorized is returned when an access token fails verification.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned for any login with a wrong username or password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by a UserProvider for an unknown username.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned by a UserProvider that refuses a duplicate username.
	ErrUserExists = errors.New("user already exists")
	// ErrLoginRateLimited is returned once a user or IP used up its login budget.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshRateLimited is returned once a handle used up its refresh budget.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrRefreshInvalid is returned for a refresh handle that is unknown,
	// expired, already rotated or bound to another device.
	ErrRefreshInvalid = errors.New("refresh token invalid")
	// ErrRefreshMissing is returned when no refresh handle was presented.
	ErrRefreshMissing = errors.New("refresh token missing")
	// ErrSessionCreationFailed is returned when a session could not be issued.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrSessionInvalidationFailed is returned when a logout could not reach the store.
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")
	// ErrBackendUnavailable is returned when Redis or the user directory fails.
	ErrBackendUnavailable = errors.New("auth backend unavailable")
	// ErrTokenIssue is returned when an access token could not be signed.
	ErrTokenIssue = errors.New("access token issue failed")
)
