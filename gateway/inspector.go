package gateway

import "net/http"

// AuthState classifies the credentials an inbound request carries.
type AuthState int

const (
	// AuthNone means no usable credential, or a loop-exempt path.
	AuthNone AuthState = iota
	// AuthBearer means an Authorization header or access cookie is present.
	AuthBearer
	// AuthNeedsRefresh means only the refresh cookie is present.
	AuthNeedsRefresh
)

func (s AuthState) String() string {
	switch s {
	case AuthBearer:
		return "bearer"
	case AuthNeedsRefresh:
		return "needs_refresh"
	default:
		return "none"
	}
}

// Inspector classifies requests by the credentials they carry.
type Inspector struct {
	AccessCookie  string
	RefreshCookie string
	Exempt        PathMatcher
}

// Inspect returns the auth state of r. Exempt paths are always AuthNone.
func (i *Inspector) Inspect(r *http.Request) AuthState {
	if matches(i.Exempt, r.URL.Path) {
		return AuthNone
	}
	if r.Header.Get("Authorization") != "" || hasCookie(r, i.AccessCookie) {
		return AuthBearer
	}
	if hasCookie(r, i.RefreshCookie) {
		return AuthNeedsRefresh
	}
	return AuthNone
}

func hasCookie(r *http.Request, name string) bool {
	if name == "" {
		return false
	}
	c, err := r.Cookie(name)
	return err == nil && c.Value != ""
}
