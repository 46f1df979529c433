package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

//go:generate mockgen -destination=mocks/refresher_mock.go -package=mocks -source=refresh_client.go Refresher

var (
	// ErrRefreshTransport covers network failures and timeouts.
	ErrRefreshTransport = errors.New("refresh transport failed")
	// ErrRefreshRejected is a non-2xx answer from the refresh endpoint.
	ErrRefreshRejected = errors.New("refresh rejected")
	// ErrRefreshMalformed is a 2xx answer without an access cookie.
	ErrRefreshMalformed = errors.New("refresh response malformed")
)

const drainLimit = 64 << 10

// RefreshOutcome is a successful refresh.
type RefreshOutcome struct {
	AccessToken string
	// SetCookies holds every Set-Cookie value of the refresh response,
	// verbatim, for relaying to the client.
	SetCookies []string
}

// Refresher obtains a new access token on behalf of the client request r.
type Refresher interface {
	Refresh(ctx context.Context, r *http.Request) (*RefreshOutcome, error)
}

// RefreshClientOption customizes a [RefreshClient].
type RefreshClientOption func(*RefreshClient)

// WithHTTPClient replaces the HTTP client. Its Timeout is left untouched;
// the per-call deadline comes from the refresh timeout.
func WithHTTPClient(c *http.Client) RefreshClientOption {
	return func(rc *RefreshClient) {
		if c != nil {
			rc.client = c
		}
	}
}

// WithPropagator replaces the global otel text map propagator.
func WithPropagator(p propagation.TextMapPropagator) RefreshClientOption {
	return func(rc *RefreshClient) {
		rc.propagator = p
	}
}

// RefreshClient calls the auth service refresh endpoint.
//
//	Docs: docs/gateway.md#refresh
type RefreshClient struct {
	url          string
	accessCookie string
	timeout      time.Duration
	client       *http.Client
	propagator   propagation.TextMapPropagator
}

// NewRefreshClient returns a client for the endpoint at url. accessCookie is
// the cookie name the endpoint sets on success.
func NewRefreshClient(url, accessCookie string, timeout time.Duration, opts ...RefreshClientOption) *RefreshClient {
	rc := &RefreshClient{
		url:          url,
		accessCookie: accessCookie,
		timeout:      timeout,
		client:       &http.Client{},
	}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// Refresh POSTs an empty body to the refresh endpoint, forwarding the
// Cookie and User-Agent headers of r.
//
// Errors wrap [ErrRefreshTransport], [ErrRefreshRejected] or
// [ErrRefreshMalformed].
func (c *RefreshClient) Refresh(ctx context.Context, r *http.Request) (*RefreshOutcome, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshTransport, err)
	}
	for _, v := range r.Header.Values("Cookie") {
		req.Header.Add("Cookie", v)
	}
	// Set even when empty so net/http does not substitute its own agent,
	// which would fail the session's device binding.
	req.Header.Set("User-Agent", r.Header.Get("User-Agent"))
	req.Header.Set("Accept", "application/json")

	propagator := c.propagator
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}
	propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshTransport, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrRefreshRejected, resp.StatusCode)
	}

	var access string
	for _, ck := range resp.Cookies() {
		if ck.Name == c.accessCookie && ck.Value != "" {
			access = ck.Value
		}
	}
	if access == "" {
		return nil, fmt.Errorf("%w: no %s cookie", ErrRefreshMalformed, c.accessCookie)
	}

	return &RefreshOutcome{
		AccessToken: access,
		SetCookies:  resp.Header.Values("Set-Cookie"),
	}, nil
}

// refreshErrorKind labels err for metrics and logs.
func refreshErrorKind(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrRefreshRejected):
		return "rejected"
	case errors.Is(err, ErrRefreshMalformed):
		return "malformed"
	default:
		return "transport"
	}
}
