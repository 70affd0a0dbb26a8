// Package middleware provides HTTP middleware for the domkit inspector.
//
// This package includes:
//   - OpenTelemetry request tracing
//   - Prometheus request and event stream metrics
//
// # OpenTelemetry Middleware
//
// Every request gets a server span named after its chi route pattern:
//
//	r := chi.NewRouter()
//	r.Use(middleware.OpenTelemetry(
//	    middleware.WithTracerName("my-inspector"),
//	    middleware.WithRequestFilter(func(r *http.Request) bool {
//	        return r.URL.Path != "/healthz"
//	    }),
//	))
//
// # Prometheus Metrics
//
// The metrics middleware records:
//   - domkit_inspect_requests_total: Requests by route and status
//   - domkit_inspect_request_duration_seconds: Request duration histogram
//   - domkit_inspect_request_errors_total: Failed requests by type
//   - domkit_inspect_stream_clients: Connected event stream clients
//   - domkit_inspect_events_sent_total: Events written to stream clients
//
//	m := middleware.NewMetrics(middleware.WithRegistry(reg))
//	r.Use(m.Handler)
package middleware
