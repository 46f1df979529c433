package authserver

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/MrEthical07/tokengate"
	"github.com/MrEthical07/tokengate/middleware"
)

type loginRequest struct {
	Username string `json:"username"`
	UserID   string `json:"userId"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := decodeLogin(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed login request")
		return
	}

	res, err := s.engine.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeAuthError(w, r, err, false)
		return
	}

	s.cookies.issue(w, res)
	writeOK(w, r, res.User)
}

func decodeLogin(r *http.Request) (loginRequest, error) {
	var req loginRequest

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data" {
		r.Body = http.MaxBytesReader(nil, r.Body, maxLoginBodyKB<<10)
		if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return req, err
		}
		req.Username = r.FormValue("username")
		req.UserID = r.FormValue("userId")
		req.Password = r.FormValue("password")
	} else {
		dec := json.NewDecoder(io.LimitReader(r.Body, maxLoginBodyKB<<10))
		if err := dec.Decode(&req); err != nil {
			return req, err
		}
	}

	if req.Username == "" {
		req.Username = req.UserID
	}
	req.Username = strings.TrimSpace(req.Username)
	return req, nil
}

// handleLoginInfo reports the caller's identity, or an empty identity for
// anonymous callers.
func (s *Server) handleLoginInfo(w http.ResponseWriter, r *http.Request) {
	info := tokengate.UserInfo{Roles: []string{}}

	token, ok := middleware.BearerToken(r.Header.Get("Authorization"))
	if !ok && r.Header.Get("Authorization") == "" {
		if c, err := r.Cookie(s.cookies.cfg.AccessName); err == nil && c.Value != "" {
			token, ok = c.Value, true
		}
	}
	if ok {
		if res, err := s.engine.ValidateAccess(r.Context(), token); err == nil {
			info = tokengate.UserInfo{UserID: res.UserID, DisplayName: res.DisplayName, Roles: res.Roles}
		}
	}

	writeOK(w, r, info)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	handle := s.cookies.refreshHandle(r)
	if handle == "" {
		writeError(w, r, http.StatusUnauthorized, tokengate.ErrRefreshMissing.Error())
		return
	}

	res, err := s.engine.Refresh(r.Context(), handle)
	if err != nil {
		s.writeAuthError(w, r, err, true)
		return
	}

	s.cookies.issue(w, res)
	writeOK(w, r, Msg{Result: 1, Msg: "tokens reissued"})
}

// handleLogout always succeeds for the client; a store failure is only
// logged.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Logout(r.Context(), s.cookies.refreshHandle(r)); err != nil {
		s.logger.WarnContext(r.Context(), "logout failed", "error", err)
	}
	s.cookies.clear(w)
	writeOK(w, r, Msg{Result: 1, Msg: "logged out"})
}

type logoutAllData struct {
	Revoked int `json:"revoked"`
}

func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	n, err := s.engine.LogoutAll(r.Context(), auth.UserID)
	if err != nil {
		s.logger.WarnContext(r.Context(), "logout all failed", "error", err)
		writeError(w, r, http.StatusServiceUnavailable, "session store unavailable")
		return
	}

	s.cookies.clear(w)
	writeOK(w, r, logoutAllData{Revoked: n})
}

type sessionView struct {
	tokengate.SessionInfo
	Current bool `json:"current"`
}

// handleSessions lists the caller's live sessions and marks the one behind
// the presented refresh cookie.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	list, err := s.engine.ListActiveSessions(r.Context(), auth.UserID)
	if err != nil {
		s.writeAuthError(w, r, err, false)
		return
	}

	current := ""
	if handle := s.cookies.refreshHandle(r); handle != "" {
		current = tokengate.SessionRef(handle)
	}
	out := make([]sessionView, 0, len(list))
	for _, info := range list {
		out = append(out, sessionView{SessionInfo: info, Current: info.Ref == current})
	}
	writeOK(w, r, out)
}

type healthData struct {
	Redis     string `json:"redis"`
	LatencyMS int64  `json:"latencyMs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	latency, err := s.engine.Ping(r.Context())
	if err != nil {
		writeEnvelope(w, r, http.StatusServiceUnavailable, messageServerError, healthData{Redis: "down", LatencyMS: latency.Milliseconds()})
		return
	}
	writeOK(w, r, healthData{Redis: "ok", LatencyMS: latency.Milliseconds()})
}

// writeAuthError maps engine errors to statuses. On refresh an invalid
// handle also clears both cookies.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, err error, refresh bool) {
	switch {
	case errors.Is(err, tokengate.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid username or password")
	case errors.Is(err, tokengate.ErrRefreshInvalid), errors.Is(err, tokengate.ErrRefreshMissing):
		if refresh {
			s.cookies.clear(w)
		}
		writeError(w, r, http.StatusUnauthorized, tokengate.ErrRefreshInvalid.Error())
	case errors.Is(err, tokengate.ErrLoginRateLimited), errors.Is(err, tokengate.ErrRefreshRateLimited):
		writeError(w, r, http.StatusTooManyRequests, "too many attempts")
	case errors.Is(err, tokengate.ErrBackendUnavailable):
		s.logger.WarnContext(r.Context(), "auth backend unavailable", "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusServiceUnavailable, "service unavailable")
	default:
		s.logger.ErrorContext(r.Context(), "auth request failed", "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
