package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

func TestTracing(t *testing.T) {
	tp := MustNewTracerProvider(
		WithAttributes(semconv.DeploymentEnvironmentKey.String("test")),
		WithSamplingRatio(1),
	)
	t.Cleanup(func() {
		require.NoError(t, tp.Close(context.Background()))
	})

	spanRecorder := tracetest.NewSpanRecorder()
	tp.RegisterSpanProcessor(spanRecorder)

	_, span := tp.Tracer("").Start(context.Background(), "test")
	TraceError(span, errors.New("boom"))
	span.End()

	spans := spanRecorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "test", spans[0].Name())
	require.Equal(t, codes.Error, spans[0].Status().Code)
	require.Equal(t, "boom", spans[0].Status().Description)
}

func TestNoopTracerProvider(t *testing.T) {
	tp := Noop()
	_, span := tp.Tracer("noop").Start(context.Background(), "test")
	span.End()

	require.False(t, span.SpanContext().IsValid())
	require.False(t, span.IsRecording())

	exporter := tracetest.NewInMemoryExporter()
	processor := sdktrace.NewSimpleSpanProcessor(exporter)
	tp.RegisterSpanProcessor(processor)
	require.NoError(t, processor.ForceFlush(context.Background()))
	require.Empty(t, exporter.GetSpans())

	require.NoError(t, tp.Close(context.Background()))
}

func TestTailLatencySpanExporter(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(NewTailLatencySpanExporter(exporter, 50*time.Millisecond)),
	)
	tracer := tp.Tracer("test")

	start := time.Now()
	ctx, slow := tracer.Start(context.Background(), "slow", trace.WithTimestamp(start))
	_, child := tracer.Start(ctx, "child")
	child.End()
	slow.End(trace.WithTimestamp(start.Add(time.Second)))

	_, fast := tracer.Start(context.Background(), "fast")
	fast.End()

	var names []string
	for _, s := range exporter.GetSpans() {
		names = append(names, s.Name)
	}
	require.Contains(t, names, "slow")
	require.NotContains(t, names, "fast")
	require.NoError(t, tp.Shutdown(context.Background()))
}

func TestHTTPServerTraceExtractor(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	var got trace.SpanContext
	handler := HTTPServerTraceExtractor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = trace.SpanContextFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, got.IsValid())
	require.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", got.TraceID().String())
}
