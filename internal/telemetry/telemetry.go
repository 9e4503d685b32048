// Package telemetry wires OpenTelemetry tracing for the approval engine.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	DocumentIDKey = attribute.Key("approval.document.id")
	TemplateIDKey = attribute.Key("approval.template.id")
	StatusKey     = attribute.Key("approval.status")
	EventKey      = attribute.Key("approval.event")
	ActorIDKey    = attribute.Key("approval.actor.id")
	StageKey      = attribute.Key("approval.stage")
)

type Shutdown func(context.Context) error

// NewTracer exports spans over OTLP/HTTP when enabled. The exporter reads
// the standard OTEL_EXPORTER_OTLP_* variables. When disabled a no-op
// tracer is returned.
func NewTracer(ctx context.Context, serviceName string, enabled bool) (trace.Tracer, Shutdown, error) {
	if !enabled {
		return Noop(), func(context.Context) error { return nil }, nil
	}

	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}))

	return tp.Tracer(serviceName), tp.Shutdown, nil
}

func Noop() trace.Tracer {
	return noop.NewTracerProvider().Tracer("noop")
}

func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("error_occurred", trace.WithAttributes(attrs...))
}
