package health

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/squ-clock/internal/domain/clock"
	"github.com/oshokin/squ-clock/internal/service/common"
)

var errPortMissing = errors.New("port missing")

func check(t *testing.T, r *Reporter, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()

	resp, err := r.server.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)

	return resp.GetStatus()
}

// TestReporter_Transitions verifies NOT_SERVING -> SERVING -> NOT_SERVING.
func TestReporter_Transitions(t *testing.T) {
	t.Parallel()

	r := NewReporter()

	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, r, ServiceName))
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, r, ""))

	r.Observe(context.Background(), clock.Ready{})
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, r, ServiceName))
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, r.Status())
	require.NoError(t, r.Cause())

	r.Observe(context.Background(), clock.ClockError{Err: errPortMissing})
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, r, ServiceName))
	require.ErrorIs(t, r.Cause(), errPortMissing)

	require.NoError(t, r.Close())
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, r.Status())
}

// TestReporter_OverGRPC serves the reporter and queries it with the health client.
func TestReporter_OverGRPC(t *testing.T) {
	t.Parallel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	r := NewReporter()
	srv := grpc.NewServer()
	r.Register(srv)

	go func() { _ = srv.Serve(lis) }()

	t.Cleanup(srv.Stop)

	client, err := common.Dial(context.Background(), lis.Addr().String())
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })

	resp, err := client.Check(context.Background(), ServiceName)
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	r.Observe(context.Background(), clock.Ready{})

	resp, err = client.Check(context.Background(), ServiceName)
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
