package logging

import (
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"go.uber.org/zap"

	"github.com/vecinotech/vecinotech/pkg/logger"
)

const (
	httpMethodKey      = "http_method"
	httpPathKey        = "http_path"
	httpCodeKey        = "http_code"
	userAgentKey       = "user_agent"
	peerAddressKey     = "peer.address"
	bytesWrittenKey    = "bytes_written"
	queryDurationKey   = "query_duration_ms"
	httpReqCompleteKey = "http_req_complete"
)

// NewLoggingHandler logs one line per HTTP request once it completes. Server
// errors are logged at error level, everything else at info. Paths listed in
// skip are not logged.
func NewLoggingHandler(l logger.Logger, next http.Handler, skip ...string) http.Handler {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := skipped[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		m := httpsnoop.CaptureMetrics(next, w, r)

		fields := []zap.Field{
			zap.String(httpMethodKey, r.Method),
			zap.String(httpPathKey, r.URL.Path),
			zap.Int(httpCodeKey, m.Code),
			zap.String(queryDurationKey, strconv.FormatInt(m.Duration.Milliseconds(), 10)),
			zap.Int64(bytesWrittenKey, m.Written),
			zap.String(peerAddressKey, r.RemoteAddr),
		}
		if ua := r.UserAgent(); ua != "" {
			fields = append(fields, zap.String(userAgentKey, ua))
		}

		if m.Code >= http.StatusInternalServerError {
			l.ErrorWithContext(r.Context(), httpReqCompleteKey, fields...)
			return
		}
		l.InfoWithContext(r.Context(), httpReqCompleteKey, fields...)
	})
}
