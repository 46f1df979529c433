package authserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/MrEthical07/tokengate"
	"github.com/MrEthical07/tokengate/gateway"
	promexport "github.com/MrEthical07/tokengate/metrics/export/prometheus"
	"github.com/MrEthical07/tokengate/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// Route paths.
const (
	PathLogin      = "/login/v1/loginProc"
	PathLoginInfo  = "/login/v1/loginInfo"
	PathRefresh    = "/login/v1/refresh"
	PathLogout     = "/user/v1/logout/current"
	PathLogoutAll  = "/user/v1/logout/all"
	PathSessions   = "/user/v1/sessions"
	PathHealth     = "/healthz"
	PathMetrics    = "/metrics"
	maxFormMemory  = 1 << 20
	maxLoginBodyKB = 64
)

// Option customizes a [Server].
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRegistry serves /metrics from reg. The engine collector is
// registered on it.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// Server is the authentication HTTP service.
//
//	Docs: docs/authserver.md
type Server struct {
	engine   *tokengate.Engine
	cookies  cookieJar
	public   gateway.PathMatcher
	logger   *slog.Logger
	registry *prometheus.Registry
	router   chi.Router
}

// New mounts every route over engine.
func New(engine *tokengate.Engine, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, tokengate.ErrEngineNotReady
	}

	s := &Server{
		engine:  engine,
		cookies: cookieJar{cfg: engine.Config().Cookie},
		public:  gateway.NewPrefixMatcher("/login/", PathLogout, PathHealth, PathMetrics),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(collectors.NewGoCollector())
	}
	if err := s.registry.Register(promexport.NewCollector(engine)); err != nil {
		return nil, err
	}
	s.logger = s.logger.With("component", "authserver")

	s.router = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(clientContext)
	r.Use(s.requireAuth)

	r.Post(PathLogin, s.handleLogin)
	r.Get(PathLoginInfo, s.handleLoginInfo)
	r.Post(PathRefresh, s.handleRefresh)
	r.Post(PathLogout, s.handleLogout)
	r.Post(PathLogoutAll, s.handleLogoutAll)
	r.Get(PathSessions, s.handleSessions)
	r.Get(PathHealth, s.handleHealth)
	r.Handle(PathMetrics, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// requireAuth guards every path the public matcher does not cover.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	guarded := middleware.Guard(s.engine,
		middleware.WithCookieFallback(s.cookies.cfg.AccessName),
		middleware.WithUnauthorizedHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, http.StatusUnauthorized, "authentication required")
		}),
	)(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.public.Match(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		guarded.ServeHTTP(w, r)
	})
}

// clientContext attaches the client IP and user agent for throttling and
// device binding. A missing User-Agent is attached as "", so a session bound
// to an agent fails closed when presented without one.
func clientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		ctx = tokengate.WithClientIP(ctx, ip)
		ctx = tokengate.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		s.logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}
