package telemetry

import (
	"context"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type tailLatencySpanExporter struct {
	next    sdktrace.SpanExporter
	latency time.Duration
}

var _ sdktrace.SpanExporter = (*tailLatencySpanExporter)(nil)

// NewTailLatencySpanExporter forwards to next only the spans of traces whose
// root span lasted at least latency. Slow nearby searches and geocoding
// cascades are what it is meant to keep.
func NewTailLatencySpanExporter(next sdktrace.SpanExporter, latency time.Duration) sdktrace.SpanExporter {
	return &tailLatencySpanExporter{next: next, latency: latency}
}

func (t *tailLatencySpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	slow := make(map[trace.TraceID]struct{})
	for _, span := range spans {
		if span.Parent().IsValid() {
			continue
		}
		if span.EndTime().Sub(span.StartTime()) >= t.latency {
			slow[span.SpanContext().TraceID()] = struct{}{}
		}
	}
	if len(slow) == 0 {
		return nil
	}

	kept := make([]sdktrace.ReadOnlySpan, 0, len(spans))
	for _, span := range spans {
		if _, ok := slow[span.SpanContext().TraceID()]; ok {
			kept = append(kept, span)
		}
	}
	return t.next.ExportSpans(ctx, kept)
}

func (t *tailLatencySpanExporter) Shutdown(ctx context.Context) error {
	return t.next.Shutdown(ctx)
}
