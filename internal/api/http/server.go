package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sensor-proxy/internal/domain"
	"sensor-proxy/internal/infra"
	"sensor-proxy/internal/logging"
)

// Server exposes the HTTP transport of the sensor proxy.
type Server struct {
	router chi.Router
}

type options struct {
	metrics   http.Handler
	websocket http.HandlerFunc
	readiness func() error
	logger    *logging.Logger
}

type Option func(*options)

// WithMetrics mounts the handler at /metrics.
func WithMetrics(handler http.Handler) Option {
	return func(o *options) { o.metrics = handler }
}

// WithWebsocket mounts the inform subscription endpoint at /ws.
func WithWebsocket(handler http.HandlerFunc) Option {
	return func(o *options) { o.websocket = handler }
}

// WithReadiness makes /healthz report 503 while check returns an error.
func WithReadiness(check func() error) Option {
	return func(o *options) { o.readiness = check }
}

func WithLogger(logger *logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// NewServer constructs a chi based HTTP server that forwards requests to the inspector.
func NewServer(service domain.SensorInspector, opts ...Option) *Server {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(infra.HTTPMiddleware(routePattern))

	registerRoutes(router, &handler{service: service, readiness: o.readiness, logger: o.logger})
	if o.metrics != nil {
		router.Method(http.MethodGet, "/metrics", o.metrics)
	}
	if o.websocket != nil {
		router.Get("/ws", o.websocket)
	}

	return &Server{router: router}
}

// routePattern labels request metrics by route rather than by raw path.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// Router returns the configured chi router for reuse in tests or external HTTP servers.
func (s *Server) Router() http.Handler {
	return s.router
}

// ServeHTTP allows Server to satisfy the http.Handler interface directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
