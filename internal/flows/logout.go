package flows

import "context"

type LogoutSessionStore interface {
	Revoke(ctx context.Context, handle string) (bool, error)
	RevokeAll(ctx context.Context, userID string) (int, error)
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Sessions LogoutSessionStore
}

// LogoutResult reports how many sessions a logout removed.
type LogoutResult struct {
	Revoked int
	Err     error
}

// RunLogout revokes one handle. Unknown handles are not an error.
func RunLogout(ctx context.Context, handle string, deps LogoutDeps) LogoutResult {
	if handle == "" {
		return LogoutResult{}
	}
	deleted, err := deps.Sessions.Revoke(ctx, handle)
	if err != nil {
		return LogoutResult{Err: err}
	}
	if deleted {
		return LogoutResult{Revoked: 1}
	}
	return LogoutResult{}
}

// RunLogoutAll revokes every session indexed for userID.
func RunLogoutAll(ctx context.Context, userID string, deps LogoutDeps) LogoutResult {
	n, err := deps.Sessions.RevokeAll(ctx, userID)
	return LogoutResult{Revoked: n, Err: err}
}
