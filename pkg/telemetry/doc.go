// Package telemetry exports domkit caches and reactive runtimes as Prometheus
// metrics and wraps invalidation and sweep passes in OpenTelemetry spans.
//
// The Collector reads its sources at scrape time, so registering a helper
// costs nothing until metrics are collected:
//
//	c := telemetry.NewCollector("")
//	c.AddCache("elements", func() telemetry.CacheSnapshot { ... })
//	prometheus.MustRegister(c)
//
// Spans use the global tracer provider. Configure it in main() before
// creating helpers:
//
//	otel.SetTracerProvider(tp)
package telemetry
