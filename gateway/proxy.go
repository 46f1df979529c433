package gateway

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

type upstream struct {
	prefix string
	match  PrefixMatcher
	proxy  *httputil.ReverseProxy
}

// Proxy forwards each request to the upstream of its longest matching
// route prefix.
type Proxy struct {
	routes []upstream
	logger *slog.Logger
}

// NewProxy builds a reverse proxy per route. Responses are flushed as they
// arrive so streamed bodies are not delayed.
//
//	Docs: docs/gateway.md#routes
func NewProxy(routes []Route, transport http.RoundTripper, logger *slog.Logger) (*Proxy, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Proxy{logger: logger.With("component", "proxy")}

	for _, rt := range routes {
		target, err := url.Parse(rt.Upstream)
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", rt.Prefix, err)
		}
		prefix := rt.Prefix
		rp := &httputil.ReverseProxy{
			Rewrite: func(pr *httputil.ProxyRequest) {
				pr.SetURL(target)
				pr.SetXForwarded()
				otel.GetTextMapPropagator().Inject(pr.Out.Context(), propagation.HeaderCarrier(pr.Out.Header))
			},
			Transport:     transport,
			FlushInterval: -1,
			ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
				p.logger.WarnContext(r.Context(), "upstream unavailable",
					"prefix", prefix,
					"path", r.URL.Path,
					"request_id", RequestIDFromContext(r.Context()),
					"error", err,
				)
				w.WriteHeader(http.StatusBadGateway)
			},
		}
		p.routes = append(p.routes, upstream{prefix: prefix, match: NewPrefixMatcher(prefix), proxy: rp})
	}

	sort.SliceStable(p.routes, func(i, j int) bool {
		return len(p.routes[i].prefix) > len(p.routes[j].prefix)
	})
	return p, nil
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for _, u := range p.routes {
		if u.match.Match(r.URL.Path) {
			u.proxy.ServeHTTP(w, r)
			return
		}
	}
	http.NotFound(w, r)
}
