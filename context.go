package tokengate

import "context"

type clientIPContextKey struct{}
type userAgentContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine uses it
// for per-IP login throttling and audit records.
//
//	Docs: docs/rate_limiting.md
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. Sessions are
// bound to a digest of it at issue and checked against it on refresh.
//
//	Docs: docs/device_binding.md
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

// userAgentFromContext reports the attached user agent and whether one was
// attached at all. An attached empty string still counts.
func userAgentFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}

	userAgent, ok := ctx.Value(userAgentContextKey{}).(string)
	return userAgent, ok
}
