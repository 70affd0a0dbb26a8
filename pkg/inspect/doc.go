// Package inspect serves a kit's diagnostics over HTTP.
//
// Routes:
//
//	GET  /healthz          liveness
//	GET  /stats            cache stats per helper and binding counters
//	GET  /stats/{helper}   cache stats of one helper
//	POST /clear            drop every cached lookup
//	POST /sweep            run one idle sweep now
//	GET  /metrics          Prometheus exposition
//	GET  /events           websocket stream of engine events as JSON
//
// The inspector is a debugging aid. Bind it to a loopback address.
package inspect
