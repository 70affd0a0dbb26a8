package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope used for domkit spans.
const TracerName = "github.com/vango-dev/domkit"

// Tracer returns the domkit tracer from the global provider. With no provider
// configured it is a no-op tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// Span wraps fn in a span named name. Panics are recorded on the span and
// re-raised.
func Span(ctx context.Context, name string, fn func(ctx context.Context), attrs ...attribute.KeyValue) {
	spanCtx, span := Tracer().Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, "panic")
			span.SetAttributes(attribute.String("domkit.panic", stringify(r)))
			panic(r)
		}
	}()
	fn(spanCtx)
}

// RecordError marks the span in ctx as failed.
func RecordError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// AddAttributes annotates the span in ctx.
func AddAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case error:
		return x.Error()
	default:
		return "non-string panic value"
	}
}
