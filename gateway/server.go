package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// Option customizes a [Gateway].
type Option func(*options)

type options struct {
	logger    *slog.Logger
	refresher Refresher
	transport http.RoundTripper
	registry  *prometheus.Registry
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRefresher replaces the HTTP [RefreshClient].
func WithRefresher(r Refresher) Option {
	return func(o *options) { o.refresher = r }
}

// WithTransport sets the round tripper used towards upstreams.
func WithTransport(t http.RoundTripper) Option {
	return func(o *options) { o.transport = t }
}

// WithRegistry registers gateway metrics on reg instead of a private
// registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// Gateway is the assembled edge: the proxy chain plus an admin router.
//
//	Docs: docs/gateway.md
type Gateway struct {
	cfg     Config
	handler http.Handler
	admin   http.Handler
	metrics *Metrics
	logger  *slog.Logger
}

// New validates cfg and assembles the gateway.
func New(cfg Config, opts ...Option) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
		o.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	if o.refresher == nil {
		o.refresher = NewRefreshClient(cfg.RefreshURL, cfg.AccessCookie, cfg.RefreshTimeout)
	}

	proxy, err := NewProxy(cfg.Routes, o.transport, o.logger)
	if err != nil {
		return nil, err
	}

	exempt := NewPrefixMatcher(cfg.RefreshPath)
	metrics := NewMetrics(o.registry)
	coord := NewCoordinator(CoordinatorConfig{
		AccessCookie:       cfg.AccessCookie,
		RefreshCookie:      cfg.RefreshCookie,
		Exempt:             exempt,
		Refresher:          o.refresher,
		MaxReplayBodyBytes: cfg.MaxReplayBodyBytes,
		MaxHeldBodyBytes:   cfg.MaxHeldBodyBytes,
		Metrics:            metrics,
		Logger:             o.logger,
	})

	var h http.Handler = proxy
	h = coord.Middleware(h)
	h = CookieToBearer(cfg.AccessCookie, exempt)(h)
	h = RequestID(h)

	return &Gateway{
		cfg:     cfg,
		handler: h,
		admin:   adminRouter(o.registry),
		metrics: metrics,
		logger:  o.logger.With("component", "gateway"),
	}, nil
}

// Handler returns the client-facing handler.
func (g *Gateway) Handler() http.Handler { return g.handler }

// AdminHandler serves /healthz and /metrics.
func (g *Gateway) AdminHandler() http.Handler { return g.admin }

func adminRouter(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

// Run serves the client and admin listeners until ctx is done, then shuts
// both down within shutdownTimeout.
func (g *Gateway) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	servers := []*http.Server{
		{Addr: g.cfg.ListenAddr, Handler: g.handler, ReadHeaderTimeout: 10 * time.Second},
		{Addr: g.cfg.AdminAddr, Handler: g.admin, ReadHeaderTimeout: 10 * time.Second},
	}
	return serveAll(ctx, g.logger, shutdownTimeout, servers...)
}

func serveAll(ctx context.Context, logger *slog.Logger, shutdownTimeout time.Duration, servers ...*http.Server) error {
	eg, egCtx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		eg.Go(func() error {
			logger.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	eg.Go(func() error {
		<-egCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var err error
		for _, srv := range servers {
			err = errors.Join(err, srv.Shutdown(shutdownCtx))
		}
		return err
	})
	return eg.Wait()
}
