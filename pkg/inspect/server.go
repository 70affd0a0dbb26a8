package inspect

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/domkit/pkg/middleware"
	"github.com/vango-dev/domkit/pkg/query"
	"github.com/vango-dev/domkit/pkg/telemetry"
)

// Source is what the inspector reports on. *domkit.Kit implements it.
type Source interface {
	Stats() map[string]query.Stats
	ReactiveStats() telemetry.ReactiveSnapshot
	ClearCache()
	Sweep() int
	OnEvent(fn func(query.Event)) (remove func())
	Collector() *telemetry.Collector
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRegistry sets the registry served on /metrics. The source's collector
// and the inspector's own metrics are registered with it. Defaults to a
// fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// WithStreamBuffer sets how many events a slow stream client may lag
// behind before events are dropped for it. Defaults to 256.
func WithStreamBuffer(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// WithCheckOrigin sets the websocket origin check. Defaults to accepting
// same-origin requests only.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(s *Server) { s.checkOrigin = fn }
}

// Server exposes a kit's statistics, maintenance operations, metrics and
// live engine events over HTTP.
type Server struct {
	src         Source
	logger      *slog.Logger
	registry    *prometheus.Registry
	buffer      int
	checkOrigin func(*http.Request) bool

	router   chi.Router
	metrics  *middleware.Metrics
	hub      *hub
	upgrader websocket.Upgrader

	closeOnce sync.Once
	unhook    func()
}

// New creates an inspector for src.
func New(src Source, opts ...Option) *Server {
	s := &Server{
		src:      src,
		logger:   slog.Default(),
		registry: prometheus.NewRegistry(),
		buffer:   256,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "inspect")

	if err := s.registry.Register(src.Collector()); err != nil {
		s.logger.Warn("inspect: collector not registered", "error", err)
	}
	s.metrics = middleware.NewMetrics(middleware.WithRegistry(s.registry))
	s.hub = newHub(s.logger, s.metrics, s.buffer)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.unhook = src.OnEvent(s.hub.publish)
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.OpenTelemetry(middleware.WithRequestFilter(func(r *http.Request) bool {
		return r.URL.Path != "/healthz"
	})))
	r.Use(s.metrics.Handler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/stats", s.handleStats)
	r.Get("/stats/{helper}", s.handleHelperStats)
	r.Post("/clear", s.handleClear)
	r.Post("/sweep", s.handleSweep)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Get("/events", s.handleEvents)
	return r
}

// Handler returns the inspector's HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Registry returns the registry served on /metrics.
func (s *Server) Registry() *prometheus.Registry { return s.registry }

// StreamClients returns the number of connected event stream clients.
func (s *Server) StreamClients() int { return s.hub.clientCount() }

// Close detaches from the source and disconnects every stream client. It
// does not stop an http.Server serving Handler.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.unhook()
		s.hub.close()
		s.registry.Unregister(s.src.Collector())
	})
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Helpers  map[string]query.Stats     `json:"helpers"`
	Reactive telemetry.ReactiveSnapshot `json:"reactive"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, StatsResponse{
		Helpers:  s.src.Stats(),
		Reactive: s.src.ReactiveStats(),
	})
}

func (s *Server) handleHelperStats(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "helper")
	st, ok := s.src.Stats()[name]
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown helper " + name})
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleClear(w http.ResponseWriter, _ *http.Request) {
	s.src.ClearCache()
	s.logger.Info("inspect: caches cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSweep(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]int{"removed": s.src.Sweep()})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		s.metrics.StreamError("upgrade")
		s.logger.Debug("inspect: websocket upgrade failed", "error", err)
		return
	}
	if !s.hub.attach(conn) {
		conn.Close()
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("inspect: response write failed", "error", err)
	}
}
