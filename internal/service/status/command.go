package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/oshokin/squ-clock/internal/api/grpc/health"
	"github.com/oshokin/squ-clock/internal/config"
	"github.com/oshokin/squ-clock/internal/logger"
	"github.com/oshokin/squ-clock/internal/service/common"
)

// Options controls the status probe.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// Address overrides the health address from the settings.
	Address string
	// Service is the health service to check; empty means the clock service.
	Service string
	// Wait keeps polling until the clock is serving or ctx is done.
	Wait bool
	// PollInterval is the delay between checks in wait mode.
	PollInterval time.Duration
}

// DefaultPollInterval is the delay between checks in wait mode.
const DefaultPollInterval = 250 * time.Millisecond

var (
	// ErrNotServing is returned when the clock answered but is not serving.
	ErrNotServing = errors.New("clock is not serving")
	// errNoHealthAddress is returned when the health endpoint is disabled.
	errNoHealthAddress = errors.New("no health address configured")
)

// Run checks the clock health once, or until serving in wait mode.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "squ-clock-status")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	address := cfg.HealthAddress
	if opts.Address != "" {
		address = opts.Address
	}

	if address == "" {
		return errNoHealthAddress
	}

	service := opts.Service
	if service == "" {
		service = health.ServiceName
	}

	client, err := common.Dial(ctx, address, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return fmt.Errorf("dial clock: %w", err)
	}

	defer func() {
		_ = client.Close()
	}()

	if !opts.Wait {
		return checkOnce(ctx, client, address, service)
	}

	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err = checkOnce(ctx, client, address, service)
		if err == nil {
			return nil
		}

		logger.DebugKV(ctx, "Clock not ready yet", "error", err)

		select {
		case <-ctx.Done():
			return err
		case <-ticker.C:
		}
	}
}

// checkOnce queries the health endpoint and logs the answer.
func checkOnce(ctx context.Context, client *common.Client, address, service string) error {
	resp, err := client.Check(ctx, service)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Clock health", "address", address, "response", protojson.Format(resp))

	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: %s", ErrNotServing, resp.GetStatus())
	}

	return nil
}
