package middleware

import (
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "domkit").
	Namespace string

	// Subsystem is the metrics subsystem (default: "inspect").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// defaultMetricsConfig returns the default metrics configuration.
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "domkit",
		Subsystem: "inspect",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics records inspector HTTP traffic and event stream activity.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestErrors   *prometheus.CounterVec
	streamClients   prometheus.Gauge
	eventsSent      prometheus.Counter
	streamErrors    *prometheus.CounterVec
}

// NewMetrics creates and registers the inspector metrics. Metrics already
// registered under the same names are reused, so several inspectors may
// share one registry.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "requests_total",
			Help:        "Total number of inspector requests",
			ConstLabels: config.ConstLabels,
		}, []string{"route", "status"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "request_duration_seconds",
			Help:        "Inspector request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"route"}),

		requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "request_errors_total",
			Help:        "Total number of failed inspector requests",
			ConstLabels: config.ConstLabels,
		}, []string{"route", "error_type"}),

		streamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "stream_clients",
			Help:        "Number of connected event stream clients",
			ConstLabels: config.ConstLabels,
		}),

		eventsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "events_sent_total",
			Help:        "Total number of engine events sent to stream clients",
			ConstLabels: config.ConstLabels,
		}),

		streamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "stream_errors_total",
			Help:        "Total event stream errors by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),
	}

	if config.Registry != nil {
		m.requestsTotal = register(config.Registry, m.requestsTotal)
		m.requestDuration = register(config.Registry, m.requestDuration)
		m.requestErrors = register(config.Registry, m.requestErrors)
		m.streamClients = register(config.Registry, m.streamClients)
		m.eventsSent = register(config.Registry, m.eventsSent)
		m.streamErrors = register(config.Registry, m.streamErrors)
	}
	return m
}

// register registers c, returning the collector already registered under
// the same descriptor when there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if stderrors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

// Handler returns middleware that records every request by chi route
// pattern and status.
//
// Metrics collected:
//   - domkit_inspect_requests_total: Counter of requests by route and status
//   - domkit_inspect_request_duration_seconds: Histogram of request duration
//   - domkit_inspect_request_errors_total: Counter of 4xx/5xx responses by type
//
// Example:
//
//	m := middleware.NewMetrics(middleware.WithRegistry(reg))
//	r := chi.NewRouter()
//	r.Use(m.Handler)
func (m *Metrics) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := routePattern(r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		if status >= http.StatusBadRequest {
			m.requestErrors.WithLabelValues(route, categorizeStatus(status)).Inc()
		}
	})
}

// routePattern returns the matched chi route pattern, or the raw path when
// the request was not routed by chi.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	if r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}

// categorizeStatus returns a low-cardinality label for an error status.
func categorizeStatus(status int) string {
	switch {
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return "timeout"
	case status == http.StatusTooManyRequests:
		return "rate_limit"
	case status < http.StatusInternalServerError:
		return "client"
	default:
		return "internal"
	}
}

// =============================================================================
// Metrics Recording Functions
// =============================================================================

// StreamOpened records a new event stream client.
func (m *Metrics) StreamOpened() {
	m.streamClients.Inc()
}

// StreamClosed records an event stream client going away.
func (m *Metrics) StreamClosed() {
	m.streamClients.Dec()
}

// EventsSent records events written to stream clients.
func (m *Metrics) EventsSent(count int) {
	m.eventsSent.Add(float64(count))
}

// StreamError records an event stream failure.
// Types: "upgrade", "write", "overflow"
func (m *Metrics) StreamError(errorType string) {
	m.streamErrors.WithLabelValues(errorType).Inc()
}
