package telemetry

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vecinotech/vecinotech/internal/build"
)

// disabledTracerProvider backs deployments running with trace.enabled=false.
// Spans started from it carry an invalid span context, so HTTP and gRPC
// middleware can still call Start and End unconditionally.
type disabledTracerProvider struct {
	embedded.TracerProvider

	tracer trace.Tracer
}

func (d *disabledTracerProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return d.tracer
}

func (d *disabledTracerProvider) Close(context.Context) error {
	return nil
}

// RegisterSpanProcessor shuts the processor down immediately since nothing
// will ever feed it spans.
func (d *disabledTracerProvider) RegisterSpanProcessor(spanProcessor sdktrace.SpanProcessor) {
	_ = spanProcessor.Shutdown(context.Background())
}

// Noop returns the TracerProvider used when tracing is disabled.
func Noop() TracerProvider {
	return &disabledTracerProvider{tracer: noop.NewTracerProvider().Tracer(build.ProjectName)}
}
