package health

import (
	"context"
	"sync"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/squ-clock/internal/domain/clock"
	"github.com/oshokin/squ-clock/internal/logger"
)

// ServiceName is the health service name of the clock.
const ServiceName = "squ.clock.v1.Clock"

// Reporter maps clock reports onto a gRPC health server.
type Reporter struct {
	server *grpchealth.Server

	mu     sync.Mutex
	status healthpb.HealthCheckResponse_ServingStatus
	cause  error
}

// NewReporter creates a reporter that is NOT_SERVING until the clock is ready.
func NewReporter() *Reporter {
	r := &Reporter{
		server: grpchealth.NewServer(),
	}

	r.set(healthpb.HealthCheckResponse_NOT_SERVING)

	return r
}

// Register installs the health service on s.
func (r *Reporter) Register(s grpc.ServiceRegistrar) {
	healthpb.RegisterHealthServer(s, r.server)
}

// Observe implements supervisor.Observer.
func (r *Reporter) Observe(ctx context.Context, report clock.Report) {
	switch rep := report.(type) {
	case clock.Ready:
		r.set(healthpb.HealthCheckResponse_SERVING)
	case clock.ClockError:
		r.mu.Lock()
		r.cause = rep.Err
		r.mu.Unlock()

		r.set(healthpb.HealthCheckResponse_NOT_SERVING)
	default:
		return
	}

	logger.InfoKV(logger.WithName(ctx, "health"), "Serving status changed", "status", r.Status())
}

// Status returns the current serving status.
func (r *Reporter) Status() healthpb.HealthCheckResponse_ServingStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.status
}

// Cause returns the clock error that made the service unavailable, if any.
func (r *Reporter) Cause() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.cause
}

// Close marks everything NOT_SERVING and ends running watches.
func (r *Reporter) Close() error {
	r.server.Shutdown()

	r.mu.Lock()
	r.status = healthpb.HealthCheckResponse_NOT_SERVING
	r.mu.Unlock()

	return nil
}

func (r *Reporter) set(status healthpb.HealthCheckResponse_ServingStatus) {
	r.mu.Lock()
	r.status = status
	r.mu.Unlock()

	// "" is the overall process status.
	r.server.SetServingStatus("", status)
	r.server.SetServingStatus(ServiceName, status)
}
