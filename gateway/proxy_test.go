package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoUpstream(name string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Upstream", name)
		w.Header().Set("X-Seen-Auth", r.Header.Get("Authorization"))
		w.Header().Set("X-Seen-Request-Id", r.Header.Get(RequestIDHeader))
		w.Header().Set("X-Seen-Forwarded-For", r.Header.Get("X-Forwarded-For"))
		_, _ = w.Write([]byte(r.URL.Path + "|" + string(body)))
	}))
}

func TestProxyLongestPrefixWins(t *testing.T) {
	users := echoUpstream("users")
	defer users.Close()
	notices := echoUpstream("notices")
	defer notices.Close()

	p, err := NewProxy([]Route{
		{Prefix: "/", Upstream: users.URL},
		{Prefix: "/notice/v1", Upstream: notices.URL},
	}, nil, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notice/v1/list", strings.NewReader("q")))
	assert.Equal(t, "notices", rec.Header().Get("X-Upstream"))
	assert.Equal(t, "/notice/v1/list|q", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Seen-Forwarded-For"))

	rec = httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login/v1/loginInfo", nil))
	assert.Equal(t, "users", rec.Header().Get("X-Upstream"))
}

func TestProxyUnknownRoute(t *testing.T) {
	p, err := NewProxy([]Route{{Prefix: "/api", Upstream: "http://127.0.0.1:1"}}, nil, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProxyUpstreamDown(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()

	p, err := NewProxy([]Route{{Prefix: "/api", Upstream: url}}, nil, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCookieToBearer(t *testing.T) {
	var got string
	h := CookieToBearer("jwtAccessToken", NewPrefixMatcher("/login/v1/refresh"))(
		http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			got = r.Header.Get("Authorization")
		}))

	r := httptest.NewRequest(http.MethodGet, "/notice", nil)
	r.AddCookie(&http.Cookie{Name: "jwtAccessToken", Value: "at"})
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "Bearer at", got)

	r = httptest.NewRequest(http.MethodGet, "/notice", nil)
	r.Header.Set("Authorization", "Bearer header")
	r.AddCookie(&http.Cookie{Name: "jwtAccessToken", Value: "at"})
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "Bearer header", got)

	r = httptest.NewRequest(http.MethodGet, "/login/v1/refresh", nil)
	r.AddCookie(&http.Cookie{Name: "jwtAccessToken", Value: "at"})
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Empty(t, got)

	r = httptest.NewRequest(http.MethodGet, "/notice", nil)
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Empty(t, got)
}

func TestRequestID(t *testing.T) {
	var fromCtx string
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		fromCtx = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, fromCtx, 36)
	assert.Equal(t, fromCtx, rec.Header().Get(RequestIDHeader))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, "abc-123", fromCtx)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}
