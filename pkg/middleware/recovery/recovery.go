package recovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vecinotech/vecinotech/pkg/logger"
	"github.com/vecinotech/vecinotech/pkg/server/errors"
)

// HTTPPanicRecoveryHandler recovers from panics in HTTP handlers and answers
// with a JSON internal error.
func HTTPPanicRecoveryHandler(next http.Handler, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				l.ErrorWithContext(r.Context(), "HTTPPanicRecoveryHandler has recovered a panic",
					zap.Error(fmt.Errorf("%v", err)),
					zap.ByteString("stacktrace", debug.Stack()),
				)
				w.Header().Set("content-type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)

				responseBody, err := json.Marshal(map[string]string{
					"code":    "internal_error",
					"message": errors.InternalServerErrorMsg,
				})
				if err != nil {
					return
				}
				_, _ = w.Write(responseBody)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// PanicRecoveryHandler recovers from panics for unary/stream services.
func PanicRecoveryHandler(l logger.Logger) grpc_recovery.RecoveryHandlerFuncContext {
	return func(ctx context.Context, p any) error {
		l.ErrorWithContext(ctx, "PanicRecoveryHandler has recovered a panic",
			zap.Error(fmt.Errorf("%v", p)),
			zap.ByteString("stacktrace", debug.Stack()),
		)

		return status.Error(codes.Internal, errors.InternalServerErrorMsg)
	}
}
