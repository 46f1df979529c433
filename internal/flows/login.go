package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/tokengate/session"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureInvalidCredentials
	LoginFailureBackend
	LoginFailureIssueSession
	LoginFailureIssueAccess
)

// LoginUser is the flow-local view of a directory entry.
type LoginUser struct {
	UserID       string
	DisplayName  string
	PasswordHash string
	Roles        []string
}

// LoginResult carries either the issued credentials or failure metadata.
type LoginResult struct {
	Failure       LoginFailureKind
	Err           error
	Reason        string
	Identity      session.Identity
	AccessToken   string
	RefreshHandle string
}

// LoginRateLimiter is the subset of the rate limiter used by login.
type LoginRateLimiter interface {
	CheckLogin(ctx context.Context, username, ip string) error
	RecordLoginFailure(ctx context.Context, username, ip string) error
	ResetLogin(ctx context.Context, username string) error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	ClientIPFromContext func(context.Context) string
	FingerprintInput    func(context.Context) *string
	LookupUser          func(ctx context.Context, username string) (LoginUser, error)
	UserNotFound        error
	VerifyPassword      func(password, hash string) (bool, error)
	VerifyAbsent        func(password string) bool
	HashStale           func(hash string) (bool, error)
	IssueSession        func(ctx context.Context, id session.Identity, fingerprintInput *string) (string, error)
	IssueAccess         func(id session.Identity) (string, error)
	DefaultRoles        []string
	RateLimiter         LoginRateLimiter
	RateLimited         error
	Warn                func(string, ...any)
}

// RunLogin checks the login budget, verifies the password, opens a refresh
// session and mints the first access token.
func RunLogin(ctx context.Context, username, password string, deps LoginDeps) LoginResult {
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	ip := ""
	if deps.ClientIPFromContext != nil {
		ip = deps.ClientIPFromContext(ctx)
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckLogin(ctx, username, ip); err != nil {
			if deps.RateLimited != nil && errors.Is(err, deps.RateLimited) {
				return LoginResult{Failure: LoginFailureRateLimited, Err: err}
			}
			return LoginResult{Failure: LoginFailureBackend, Err: err}
		}
	}

	fail := func(reason string, err error) LoginResult {
		if deps.RateLimiter != nil {
			if rlErr := deps.RateLimiter.RecordLoginFailure(ctx, username, ip); rlErr != nil {
				deps.Warn("login failure counter not recorded", "error", rlErr)
			}
		}
		return LoginResult{Failure: LoginFailureInvalidCredentials, Err: err, Reason: reason}
	}

	if username == "" || password == "" {
		return fail("empty_credentials", nil)
	}

	user, err := deps.LookupUser(ctx, username)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			if deps.VerifyAbsent != nil {
				deps.VerifyAbsent(password)
			}
			return fail("user_not_found", err)
		}
		return LoginResult{Failure: LoginFailureBackend, Err: err}
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return fail("password_hash_invalid", err)
	}
	if !ok {
		return fail("password_mismatch", nil)
	}
	if deps.HashStale != nil {
		if stale, _ := deps.HashStale(user.PasswordHash); stale {
			deps.Warn("password hash uses outdated parameters", "user_id", user.UserID)
		}
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.ResetLogin(ctx, username); err != nil {
			deps.Warn("login counter not reset", "error", err)
		}
	}

	roles := user.Roles
	if len(roles) == 0 {
		roles = deps.DefaultRoles
	}
	id := session.Identity{
		UserID:      user.UserID,
		DisplayName: user.DisplayName,
		Roles:       roles,
	}

	var fingerprint *string
	if deps.FingerprintInput != nil {
		fingerprint = deps.FingerprintInput(ctx)
	}

	handle, err := deps.IssueSession(ctx, id, fingerprint)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssueSession, Err: err, Identity: id}
	}

	access, err := deps.IssueAccess(id)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssueAccess, Err: err, Identity: id, RefreshHandle: handle}
	}

	return LoginResult{
		Failure:       LoginFailureNone,
		Identity:      id,
		AccessToken:   access,
		RefreshHandle: handle,
	}
}
