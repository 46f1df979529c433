package gateway

import "net/http"

// CookieToBearer copies the access cookie into an Authorization header
// when the request has none. Exempt paths pass through unchanged.
func CookieToBearer(accessCookie string, exempt PathMatcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "" || matches(exempt, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if c, err := r.Cookie(accessCookie); err == nil && c.Value != "" {
				r = r.Clone(r.Context())
				r.Header.Set("Authorization", "Bearer "+c.Value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
