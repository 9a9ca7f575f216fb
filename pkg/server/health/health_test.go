package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	healthv1pb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

type readiness struct {
	ready bool
	err   error
}

func (r readiness) IsReady(context.Context) (bool, error) {
	return r.ready, r.err
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name       string
		target     readiness
		service    string
		wantStatus healthv1pb.HealthCheckResponse_ServingStatus
		wantCode   codes.Code
	}{
		{name: "serving", target: readiness{ready: true}, wantStatus: healthv1pb.HealthCheckResponse_SERVING},
		{name: "named_service", target: readiness{ready: true}, service: "vecinotech", wantStatus: healthv1pb.HealthCheckResponse_SERVING},
		{name: "not_ready", target: readiness{}, wantStatus: healthv1pb.HealthCheckResponse_NOT_SERVING},
		{name: "error", target: readiness{err: errors.New("db down")}, wantStatus: healthv1pb.HealthCheckResponse_NOT_SERVING, wantCode: codes.Unavailable},
		{name: "unknown_service", target: readiness{ready: true}, service: "other", wantCode: codes.NotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			checker := &Checker{TargetService: tc.target, TargetServiceName: "vecinotech"}

			res, err := checker.Check(context.Background(), &healthv1pb.HealthCheckRequest{Service: tc.service})
			require.Equal(t, tc.wantCode, status.Code(err))
			if tc.wantCode == codes.NotFound {
				require.Nil(t, res)
				return
			}
			require.Equal(t, tc.wantStatus, res.GetStatus())
		})
	}
}
