package recovery

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthv1pb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/vecinotech/vecinotech/pkg/logger"
)

func TestPanic(t *testing.T) {
	panicHandlerFunc := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		panic("Unexpected error!")
	})

	log, logs := logger.NewObserverLogger("error")
	handler := HTTPPanicRecoveryHandler(panicHandlerFunc, log)

	req, err := http.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, err)

	resp := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(resp, req)
	})

	require.Equal(t, http.StatusInternalServerError, resp.Code)
	require.JSONEq(t, `{"code":"internal_error","message":"internal server error"}`, resp.Body.String())
	require.Equal(t, 1, logs.Len())
}

func TestUnaryPanicInterceptor(t *testing.T) {
	listener := bufconn.Listen(1024 * 1024)
	t.Cleanup(func() {
		listener.Close()
		goleak.VerifyNone(t)
	})

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpc_recovery.UnaryServerInterceptor(
			grpc_recovery.WithRecoveryHandlerContext(
				PanicRecoveryHandler(logger.NewNoopLogger()),
			),
		),
	))
	t.Cleanup(srv.Stop)

	healthv1pb.RegisterHealthServer(srv, &panickingHealthServer{})

	go func() {
		_ = srv.Serve(listener)
	}()

	dialer := func(context.Context, string) (net.Conn, error) {
		return listener.Dial()
	}

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
	})

	_, err = healthv1pb.NewHealthClient(conn).Check(context.Background(), &healthv1pb.HealthCheckRequest{})
	st, ok := status.FromError(err)
	require.True(t, ok)

	require.Equal(t, codes.Internal, st.Code())
}

type panickingHealthServer struct {
	healthv1pb.UnimplementedHealthServer
}

func (panickingHealthServer) Check(context.Context, *healthv1pb.HealthCheckRequest) (*healthv1pb.HealthCheckResponse, error) {
	panic("Unexpected error!")
}
