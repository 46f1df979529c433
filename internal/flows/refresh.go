package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/tokengate/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureRateLimited
	RefreshFailureSessionNotFound
	RefreshFailureRotationLost
	RefreshFailureBackend
	RefreshFailureIssueSession
	RefreshFailureIssueAccess
)

// RefreshResult carries either the rotated credentials or failure metadata.
type RefreshResult struct {
	Failure       RefreshFailureKind
	Err           error
	UserID        string
	Identity      session.Identity
	AccessToken   string
	RefreshHandle string
}

type RefreshRateLimiter interface {
	CheckRefresh(ctx context.Context, handle string) error
}

// RefreshSessionStore is the subset of session.Store used by rotation.
type RefreshSessionStore interface {
	Validate(ctx context.Context, handle string, fingerprintInput *string) (*session.Session, error)
	Revoke(ctx context.Context, handle string) (bool, error)
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	FingerprintInput func(context.Context) *string
	IssueSession     func(ctx context.Context, id session.Identity, fingerprintInput *string) (string, error)
	IssueAccess      func(id session.Identity) (string, error)
	Sessions         RefreshSessionStore
	SessionNotFound  error
	RateLimiter      RefreshRateLimiter
	RateLimited      error
}

// RunRefresh rotates the session behind handle: validate, revoke, issue.
//
// Only the caller whose revoke actually removed the record goes on to issue
// a replacement, so two concurrent rotations of one handle yield exactly one
// new session.
func RunRefresh(ctx context.Context, handle string, deps RefreshDeps) RefreshResult {
	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckRefresh(ctx, handle); err != nil {
			if deps.RateLimited != nil && errors.Is(err, deps.RateLimited) {
				return RefreshResult{Failure: RefreshFailureRateLimited, Err: err}
			}
			return RefreshResult{Failure: RefreshFailureBackend, Err: err}
		}
	}

	var fingerprint *string
	if deps.FingerprintInput != nil {
		fingerprint = deps.FingerprintInput(ctx)
	}

	sess, err := deps.Sessions.Validate(ctx, handle, fingerprint)
	if err != nil {
		if deps.SessionNotFound != nil && errors.Is(err, deps.SessionNotFound) {
			return RefreshResult{Failure: RefreshFailureSessionNotFound, Err: err}
		}
		return RefreshResult{Failure: RefreshFailureBackend, Err: err}
	}
	id := sess.Identity()

	deleted, err := deps.Sessions.Revoke(ctx, handle)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureBackend, Err: err, UserID: sess.UserID}
	}
	if !deleted {
		return RefreshResult{Failure: RefreshFailureRotationLost, UserID: sess.UserID}
	}

	next, err := deps.IssueSession(ctx, id, fingerprint)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssueSession, Err: err, UserID: sess.UserID}
	}

	access, err := deps.IssueAccess(id)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssueAccess, Err: err, UserID: sess.UserID, RefreshHandle: next}
	}

	return RefreshResult{
		Failure:       RefreshFailureNone,
		UserID:        sess.UserID,
		Identity:      id,
		AccessToken:   access,
		RefreshHandle: next,
	}
}
