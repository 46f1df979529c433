package gateway

import "context"

// RetryContext records what the coordinator already did for one client
// request. It is an immutable value; the With methods return copies.
type RetryContext struct {
	retried          bool
	refreshAttempted bool
}

// Retried reports whether the request was already replayed, or forwarded
// after a successful pre-emptive refresh.
func (rc RetryContext) Retried() bool { return rc.retried }

// RefreshAttempted reports whether the pre-emptive refresh failed for this
// request. It is informational; the 401 path still tries once more.
func (rc RetryContext) RefreshAttempted() bool { return rc.refreshAttempted }

// WithRetried returns a copy marked as retried.
func (rc RetryContext) WithRetried() RetryContext {
	rc.retried = true
	return rc
}

// WithRefreshAttempted returns a copy marked as having attempted a refresh.
func (rc RetryContext) WithRefreshAttempted() RetryContext {
	rc.refreshAttempted = true
	return rc
}

type retryContextKey struct{}

// ContextWithRetry stores rc in ctx.
func ContextWithRetry(ctx context.Context, rc RetryContext) context.Context {
	return context.WithValue(ctx, retryContextKey{}, rc)
}

// RetryFromContext returns the RetryContext stored in ctx, or the zero
// value.
func RetryFromContext(ctx context.Context) RetryContext {
	rc, _ := ctx.Value(retryContextKey{}).(RetryContext)
	return rc
}
