package requestid

import (
	"context"
	"net/http"
	"regexp"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vecinotech/vecinotech/pkg/logger"
)

const (
	requestIDKey      = "request_id"
	requestIDTraceKey = "request_id"

	// RequestIDHeader defines the HTTP header that is set in each HTTP response
	// for a given request. The value of the header is unique per request.
	RequestIDHeader = "X-Request-Id"
)

// incoming ids are kept only when they look like ids
var validID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

type ctxKey struct{}

// InitID returns the ID to be used to identify the request.
// If trace is enabled, returns trace ID; otherwise returns a new ULID.
func InitID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.TraceID().IsValid() {
		return spanCtx.TraceID().String()
	}
	return ulid.Make().String()
}

// FromContext returns the request id set by Handler.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok
}

// Handler assigns a request id, echoes it in the response header and makes it
// part of every context aware log line. It must come after the trace handler
// and before the logging handler.
func Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		requestID := r.Header.Get(RequestIDHeader)
		if !validID.MatchString(requestID) {
			requestID = InitID(ctx)
		}

		w.Header().Set(RequestIDHeader, requestID)
		trace.SpanFromContext(ctx).SetAttributes(attribute.String(requestIDTraceKey, requestID))

		ctx = context.WithValue(ctx, ctxKey{}, requestID)
		ctx = logger.ContextWithFields(ctx, zap.String(requestIDKey, requestID))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
