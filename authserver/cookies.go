package authserver

import (
	"net/http"
	"time"

	"github.com/MrEthical07/tokengate"
)

type cookieJar struct {
	cfg tokengate.CookieConfig
}

func (j cookieJar) cookie(name, value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     j.cfg.Path,
		Domain:   j.cfg.Domain,
		HttpOnly: true,
		Secure:   j.cfg.Secure || j.cfg.SameSite == http.SameSiteNoneMode,
		SameSite: j.cfg.SameSite,
	}
	if c.Path == "" {
		c.Path = "/"
	}
	if ttl > 0 {
		c.MaxAge = int(ttl / time.Second)
	} else {
		// Max-Age=0
		c.MaxAge = -1
	}
	return c
}

func (j cookieJar) issue(w http.ResponseWriter, res *tokengate.LoginResult) {
	http.SetCookie(w, j.cookie(j.cfg.AccessName, res.AccessToken, res.AccessTTL))
	http.SetCookie(w, j.cookie(j.cfg.RefreshName, res.RefreshHandle, res.SessionTTL))
}

func (j cookieJar) clear(w http.ResponseWriter) {
	http.SetCookie(w, j.cookie(j.cfg.AccessName, "", 0))
	http.SetCookie(w, j.cookie(j.cfg.RefreshName, "", 0))
}

func (j cookieJar) refreshHandle(r *http.Request) string {
	c, err := r.Cookie(j.cfg.RefreshName)
	if err != nil {
		return ""
	}
	return c.Value
}
