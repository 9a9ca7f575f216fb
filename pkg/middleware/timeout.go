// Package middleware holds the HTTP middleware shared by the API and the
// WebSocket transport.
package middleware

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vecinotech/vecinotech/pkg/logger"
)

// TimeoutHandler sets the timeout in each request
type TimeoutHandler struct {
	timeout time.Duration
	logger  logger.Logger
}

// NewTimeoutHandler returns new TimeoutHandler that timeouts request if it
// exceeds the timeout value. A non positive timeout disables it.
func NewTimeoutHandler(timeout time.Duration, logger logger.Logger) *TimeoutHandler {
	return &TimeoutHandler{
		timeout: timeout,
		logger:  logger,
	}
}

// Handler bounds the request context. Unlike http.TimeoutHandler the handler
// keeps writing its own response, so a timed out request gets the API's JSON
// error body instead of a plain text one.
func (h *TimeoutHandler) Handler(next http.Handler) http.Handler {
	if h.timeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		next.ServeHTTP(w, r.WithContext(ctx))

		if ctx.Err() == context.DeadlineExceeded {
			h.logger.WarnWithContext(ctx, "request exceeded its deadline",
				zap.String("http_path", r.URL.Path),
				zap.Duration("timeout", h.timeout))
		}
	})
}
