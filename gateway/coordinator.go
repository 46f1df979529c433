package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrEthical07/tokengate/gateway"

// CoordinatorConfig wires a [Coordinator].
type CoordinatorConfig struct {
	AccessCookie       string
	RefreshCookie      string
	Exempt             PathMatcher
	Refresher          Refresher
	MaxReplayBodyBytes int64
	MaxHeldBodyBytes   int64
	Metrics            *Metrics
	Logger             *slog.Logger
}

// Coordinator performs the pre-emptive refresh and the single 401 retry.
//
//	Docs: docs/gateway.md#coordinator
type Coordinator struct {
	inspector     Inspector
	accessCookie  string
	refreshCookie string
	exempt        PathMatcher
	refresher     Refresher
	maxBody       int64
	maxHeld       int64
	metrics       *Metrics
	logger        *slog.Logger
}

// NewCoordinator returns a coordinator for cfg.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := cfg.MaxReplayBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxReplayBodyBytes
	}
	return &Coordinator{
		inspector: Inspector{
			AccessCookie:  cfg.AccessCookie,
			RefreshCookie: cfg.RefreshCookie,
			Exempt:        cfg.Exempt,
		},
		accessCookie:  cfg.AccessCookie,
		refreshCookie: cfg.RefreshCookie,
		exempt:        cfg.Exempt,
		refresher:     cfg.Refresher,
		maxBody:       maxBody,
		maxHeld:       cfg.MaxHeldBodyBytes,
		metrics:       cfg.Metrics,
		logger:        logger.With("component", "coordinator"),
	}
}

// exchange is the per-request retry claim.
type exchange struct {
	claimed atomic.Bool
}

func (ex *exchange) claim() bool {
	return ex.claimed.CompareAndSwap(false, true)
}

// Middleware wraps next, normally the reverse proxy.
//
//	Flow: inspect -> [pre-refresh] -> forward -> [hold 401 -> refresh -> replay once]
func (c *Coordinator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.serve(w, r, next)
	})
}

func (c *Coordinator) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	ctx := r.Context()
	rc := RetryFromContext(ctx)

	if matches(c.exempt, r.URL.Path) {
		c.metrics.incLoopExempt()
		next.ServeHTTP(w, r)
		return
	}

	considered := shouldBuffer(r, c.exempt)
	body, err := BufferBody(r, c.exempt, c.maxBody)
	if err != nil {
		c.logger.DebugContext(ctx, "request body unreadable", "path", r.URL.Path, "error", err)
		http.Error(w, "request body unreadable", http.StatusBadRequest)
		return
	}
	c.metrics.observeBody(body, considered)

	if !rc.Retried() && !rc.RefreshAttempted() && c.inspector.Inspect(r) == AuthNeedsRefresh {
		out, err := c.refresh(ctx, r, triggerPreemptive)
		if err == nil {
			relayCookies(w, out)
			fwd := c.withAccessToken(r, out.AccessToken, rc.WithRetried())
			next.ServeHTTP(w, fwd)
			return
		}
		rc = rc.WithRefreshAttempted()
	}

	r = r.WithContext(ContextWithRetry(ctx, rc))

	ex := &exchange{}
	iw := newInterceptWriter(w, c.maxHeld, func(status int) bool {
		return status == http.StatusUnauthorized && c.retryEligible(r, rc) && ex.claim()
	})
	next.ServeHTTP(iw, r)
	iw.finish()

	if !iw.held {
		if iw.spilled {
			c.logger.DebugContext(ctx, "401 body too large to hold, passed through", "path", r.URL.Path)
		}
		return
	}

	out, err := c.refresh(ctx, r, triggerUnauthorized)
	if err != nil {
		iw.release()
		return
	}

	relayCookies(w, out)
	replay := c.withAccessToken(r, out.AccessToken, rc.WithRetried())
	body.Restore(replay)
	c.metrics.incReplay()
	next.ServeHTTP(w, replay)
}

// retryEligible gates the 401 path. A failed pre-emptive refresh does not
// disqualify it: the 401 path gets its own refresh attempt.
func (c *Coordinator) retryEligible(r *http.Request, rc RetryContext) bool {
	if rc.Retried() {
		return false
	}
	if matches(c.exempt, r.URL.Path) {
		return false
	}
	return hasCookie(r, c.refreshCookie)
}

// refresh calls the refresher inside a client span and logs failures at
// debug level. Errors are never surfaced to the client.
func (c *Coordinator) refresh(ctx context.Context, r *http.Request, trigger string) (*RefreshOutcome, error) {
	if c.refresher == nil {
		return nil, ErrRefreshTransport
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "gateway.refresh",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("tokengate.refresh.trigger", trigger),
			attribute.String("http.route", r.URL.Path),
		),
	)
	defer span.End()

	start := time.Now()
	out, err := c.refresher.Refresh(ctx, r)
	if err == nil && (out == nil || out.AccessToken == "") {
		err = ErrRefreshMalformed
	}
	c.metrics.observeRefresh(trigger, err, time.Since(start))

	if err != nil {
		span.SetAttributes(attribute.String("tokengate.refresh.outcome", refreshErrorKind(err)))
		span.SetStatus(codes.Error, "refresh failed")
		c.logger.DebugContext(ctx, "refresh failed",
			"trigger", trigger,
			"path", r.URL.Path,
			"kind", refreshErrorKind(err),
			"error", err,
		)
		return nil, err
	}
	span.SetAttributes(attribute.String("tokengate.refresh.outcome", "success"))
	return out, nil
}

// withAccessToken clones r carrying the new bearer. The access cookie is
// appended only when r has none. The body is shared with r.
func (c *Coordinator) withAccessToken(r *http.Request, token string, rc RetryContext) *http.Request {
	out := r.Clone(ContextWithRetry(r.Context(), rc))
	out.Header.Set("Authorization", "Bearer "+token)

	if _, err := r.Cookie(c.accessCookie); err != nil {
		pair := c.accessCookie + "=" + token
		existing := strings.Join(out.Header.Values("Cookie"), "; ")
		if existing == "" {
			out.Header.Set("Cookie", pair)
		} else {
			out.Header.Set("Cookie", existing+"; "+pair)
		}
	}
	return out
}

func relayCookies(w http.ResponseWriter, out *RefreshOutcome) {
	for _, sc := range out.SetCookies {
		w.Header().Add("Set-Cookie", sc)
	}
}
