// Package observability provides tracing for caudal runs.
//
// Tracing is off until InitTracing installs a tracer provider; before that
// every span is a no-op, so pipeline stages can open spans unconditionally.
// Spans are exported synchronously as JSON to the writer given to
// InitTracing, typically outputs/trace.json.
package observability

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName names the tracer used by every caudal span
const TracerName = "github.com/ajitpratap0/caudal"

var (
	mu       sync.Mutex
	provider *sdktrace.TracerProvider
)

// InitTracing installs a tracer provider exporting to w and returns its
// shutdown function, which flushes and detaches the exporter.
func InitTracing(w io.Writer, service, version string) (func(context.Context) error, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(service),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSyncer(exporter),
	)

	mu.Lock()
	provider = tp
	mu.Unlock()
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		mu.Lock()
		if provider == tp {
			provider = nil
		}
		mu.Unlock()
		return tp.Shutdown(ctx)
	}, nil
}

// Tracer returns the caudal tracer, a no-op unless tracing is initialized.
func Tracer() trace.Tracer {
	mu.Lock()
	defer mu.Unlock()
	if provider == nil {
		return noop.NewTracerProvider().Tracer(TracerName)
	}
	return provider.Tracer(TracerName)
}

// Span wraps a trace span and collects attributes until End.
type Span struct {
	span       trace.Span
	attributes []attribute.KeyValue
}

// StartSpan starts a span named name as a child of any span in ctx.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	ctx, span := Tracer().Start(ctx, name)
	return ctx, &Span{span: span}
}

// SetAttribute records an attribute, converting common Go types.
func (s *Span) SetAttribute(key string, value any) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// End sets the status from err and ends the span.
func (s *Span) End(err error) {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}

// Trace runs fn inside a span named name.
func Trace(ctx context.Context, name string, fn func(ctx context.Context, span *Span) error) error {
	ctx, span := StartSpan(ctx, name)
	err := fn(ctx, span)
	span.End(err)
	return err
}
