package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/vecinotech/vecinotech/internal/build"
)

type TracerOption func(d *customTracer)

func WithOTLPEndpoint(endpoint string) TracerOption {
	return func(d *customTracer) {
		d.endpoint = endpoint
	}
}

func WithOTLPInsecure() TracerOption {
	return func(d *customTracer) {
		d.insecure = true
	}
}

func WithAttributes(attrs ...attribute.KeyValue) TracerOption {
	return func(d *customTracer) {
		d.attributes = append(d.attributes, attrs...)
	}
}

func WithSamplingRatio(samplingRatio float64) TracerOption {
	return func(d *customTracer) {
		d.samplingRatio = samplingRatio
	}
}

// WithTailLatency only exports traces whose root span took at least latency.
// Zero exports everything.
func WithTailLatency(latency time.Duration) TracerOption {
	return func(d *customTracer) {
		d.tailLatency = latency
	}
}

type customTracer struct {
	endpoint      string
	insecure      bool
	attributes    []attribute.KeyValue
	samplingRatio float64
	tailLatency   time.Duration
}

// MustNewTracerProvider builds the global tracer provider. Without an OTLP
// endpoint spans are sampled but not exported, which lets callers attach
// their own span processors.
func MustNewTracerProvider(opts ...TracerOption) TracerProvider {
	tracer := &customTracer{
		attributes: []attribute.KeyValue{
			semconv.ServiceNameKey.String(build.ProjectName),
			semconv.ServiceVersionKey.String(build.Version),
		},
	}
	for _, opt := range opts {
		opt(tracer)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(tracer.attributes...))
	if err != nil {
		panic(err)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(tracer.samplingRatio))),
		sdktrace.WithResource(res),
	}

	if tracer.endpoint != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(tracer.endpoint)}
		if tracer.insecure {
			exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
		}

		var exp sdktrace.SpanExporter
		exp, err = otlptracegrpc.New(ctx, exporterOpts...)
		if err != nil {
			panic(fmt.Sprintf("failed to establish a connection with the otlp exporter: %v", err))
		}
		if tracer.tailLatency > 0 {
			exp = NewTailLatencySpanExporter(exp, tracer.tailLatency)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetTracerProvider(tp)

	return &tracerProvider{tp: tp}
}

// TraceError marks span as failed with err.
func TraceError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
