package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/tokengate"
)

type authResultContextKey struct{}

// AccessValidator verifies an access token. *tokengate.Engine implements it.
type AccessValidator interface {
	ValidateAccess(ctx context.Context, token string) (*tokengate.AuthResult, error)
}

// AuthResultFromContext returns the identity stored by [Guard].
func AuthResultFromContext(ctx context.Context) (*tokengate.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*tokengate.AuthResult)
	return res, ok
}

// WithAuthResult stores res in ctx the way [Guard] does.
func WithAuthResult(ctx context.Context, res *tokengate.AuthResult) context.Context {
	return context.WithValue(ctx, authResultContextKey{}, res)
}

type guardOptions struct {
	cookieName   string
	unauthorized http.HandlerFunc
}

// GuardOption customizes [Guard].
type GuardOption func(*guardOptions)

// WithCookieFallback makes the guard read the access token from the named
// cookie when no Authorization header is present.
func WithCookieFallback(name string) GuardOption {
	return func(o *guardOptions) {
		o.cookieName = name
	}
}

// WithUnauthorizedHandler replaces the plain-text 401 response.
func WithUnauthorizedHandler(h http.HandlerFunc) GuardOption {
	return func(o *guardOptions) {
		if h != nil {
			o.unauthorized = h
		}
	}
}

func defaultUnauthorized(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// Guard rejects requests without a valid access token and stores the
// decoded [tokengate.AuthResult] in the request context.
//
//	Docs: docs/middleware.md
func Guard(v AccessValidator, opts ...GuardOption) func(http.Handler) http.Handler {
	o := guardOptions{unauthorized: defaultUnauthorized}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				o.unauthorized(w, r)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok && o.cookieName != "" && r.Header.Get("Authorization") == "" {
				if c, err := r.Cookie(o.cookieName); err == nil && c.Value != "" {
					token, ok = c.Value, true
				}
			}
			if !ok {
				o.unauthorized(w, r)
				return
			}

			res, err := v.ValidateAccess(r.Context(), token)
			if err != nil {
				o.unauthorized(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthResult(r.Context(), res)))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is matched case-insensitively.
func BearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
