package clockd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"go.uber.org/multierr"
	"google.golang.org/grpc"

	"github.com/oshokin/squ-clock/internal/api/grpc/health"
	"github.com/oshokin/squ-clock/internal/config"
	"github.com/oshokin/squ-clock/internal/domain/clock"
	"github.com/oshokin/squ-clock/internal/logger"
	"github.com/oshokin/squ-clock/internal/midiport"
	repository "github.com/oshokin/squ-clock/internal/repository/state"
	"github.com/oshokin/squ-clock/internal/service/adaptor"
	"github.com/oshokin/squ-clock/internal/service/generator"
	"github.com/oshokin/squ-clock/internal/service/supervisor"
	"github.com/oshokin/squ-clock/internal/version"
)

// Options controls the clock process.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// HealthAddress overrides the health listen address.
	HealthAddress string
	// InputPort overrides the MIDI input port name.
	InputPort string
	// Source overrides the clock source ("internal" or "external").
	Source string
	// Tempo overrides the tempo when positive.
	Tempo int
	// StateFile overrides the path of the persisted settings.
	StateFile string
	// Console is read for transport commands; nil means standard input.
	Console io.Reader
	// OpenPort opens the MIDI input; nil means midiport.Open.
	OpenPort func(name string) (adaptor.Source, error)
}

// Run starts the clock and blocks until ctx is canceled.
//
//nolint:cyclop,funlen // Linear startup and shutdown sequence.
func Run(ctx context.Context, opts *Options) (err error) {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "squ-clock")

	// Load configuration and apply command line overrides.
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if err = applyOverrides(settings, opts); err != nil {
		return err
	}

	if level, ok := logger.ParseLogLevel(settings.LogLevel); ok {
		logger.SetLevel(level)
	}

	// Restore the last tempo, swing and source unless given explicitly.
	repo := repository.NewFileRepository(settings.StateFile)
	if err = restore(ctx, repo, settings, opts); err != nil {
		return err
	}

	drift, err := driftPolicy(settings.Clock.Drift)
	if err != nil {
		return err
	}

	// The port is opened even for the internal source so a later switch can use it.
	input := openInput(ctx, settings.MIDI.InputPort, opts.OpenPort)

	reporter := health.NewReporter()

	sup, err := supervisor.New(ctx, supervisor.Options{
		Clock:            clock.Config{Tempo: settings.Clock.Tempo, Swing: settings.Clock.Swing},
		Source:           settings.Clock.Source,
		ByteSource:       input,
		Drift:            drift,
		NormalizePulses:  settings.MIDI.NormalizePulses,
		EstimateTempo:    settings.MIDI.EstimateTempo,
		MailboxSize:      settings.Clock.MailboxSize,
		Observers:        []supervisor.Observer{reporter},
		SequenceLogLevel: settings.SequenceLogLevel,
	})
	if err != nil {
		return fmt.Errorf("start clock: %w", err)
	}

	// Persist the settings and release the tree on every exit path.
	defer func() {
		err = multierr.Combine(err, persist(ctx, repo, sup), sup.Close())
	}()

	if settings.Clock.Autostart {
		go autostart(ctx, sup)
	}

	// Serve the health endpoint if configured.
	var grpcServer *grpc.Server

	if settings.HealthAddress != "" {
		lc := net.ListenConfig{}

		lis, listenErr := lc.Listen(ctx, "tcp", settings.HealthAddress)
		if listenErr != nil {
			return fmt.Errorf("listen on %s: %w", settings.HealthAddress, listenErr)
		}

		grpcServer = grpc.NewServer()
		reporter.Register(grpcServer)

		go func() {
			if serveErr := grpcServer.Serve(lis); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
				logger.ErrorKV(ctx, "Health endpoint stopped", "error", serveErr)
			}
		}()

		logger.InfoKV(ctx, "Health endpoint listening", "address", settings.HealthAddress)
	}

	// Read transport commands until the console closes.
	console := opts.Console
	if console == nil {
		console = os.Stdin
	}

	go runConsole(ctx, console, sup)

	logger.InfoKV(ctx, "Clock running",
		"version", version.Short(),
		"source", settings.Clock.Source,
		"tempo", settings.Clock.Tempo,
		"swing", settings.Clock.Swing,
		"input_port", settings.MIDI.InputPort)

	<-ctx.Done()
	logger.Info(ctx, "Shutting down clock")

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	return nil
}

// applyOverrides copies command line values into settings.
func applyOverrides(settings *config.Config, opts *Options) error {
	if opts.HealthAddress != "" {
		settings.HealthAddress = opts.HealthAddress
	}

	if opts.InputPort != "" {
		settings.MIDI.InputPort = opts.InputPort
	}

	if opts.StateFile != "" {
		settings.StateFile = opts.StateFile
	}

	if opts.Tempo > 0 {
		settings.Clock.Tempo = opts.Tempo
	}

	if opts.Source != "" {
		kind, err := clock.ParseSourceKind(opts.Source)
		if err != nil {
			return fmt.Errorf("parse source: %w", err)
		}

		settings.Clock.Source = kind
	}

	if err := config.Validate(settings); err != nil {
		return fmt.Errorf("validate settings: %w", err)
	}

	return nil
}

// restore applies the persisted settings that the command line did not override.
func restore(ctx context.Context, repo repository.Repository, settings *config.Config, opts *Options) error {
	saved, err := repo.Load(ctx)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("load state: %w", err)
	}

	if opts.Tempo <= 0 {
		settings.Clock.Tempo = saved.Clock.Tempo
	}

	if opts.Source == "" {
		settings.Clock.Source = saved.Source
	}

	settings.Clock.Swing = saved.Clock.Swing

	logger.InfoKV(ctx, "Restored clock state", "tempo", settings.Clock.Tempo, "swing", settings.Clock.Swing,
		"source", settings.Clock.Source, "saved_at", saved.SavedAt)

	return nil
}

// persist stores the settings the controller ended up with.
func persist(ctx context.Context, repo repository.Repository, sup *supervisor.Supervisor) error {
	snap, err := sup.Controller().Snapshot(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("read clock state: %w", err)
	}

	if err = repo.Save(ctx, &repository.Settings{Clock: snap.Config, Source: snap.Source}); err != nil {
		return fmt.Errorf("save clock state: %w", err)
	}

	return nil
}

// errUnknownDrift is returned for a drift policy config.Validate did not normalize.
var errUnknownDrift = errors.New("unknown drift policy")

// driftPolicy builds the generator drift policy from the settings.
//
//nolint:ireturn // The policy is chosen at runtime.
func driftPolicy(drift config.DriftSettings) (generator.DriftPolicy, error) {
	switch drift.Policy {
	case config.DriftMeasured, "":
		return generator.MeasuredCorrection{}, nil
	case config.DriftFixed:
		return generator.FixedCorrection{Amount: drift.Correction}, nil
	case config.DriftNone:
		return generator.NoCorrection{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownDrift, drift.Policy)
	}
}

// openInput opens the MIDI input or returns a source that reports why it cannot.
//
//nolint:ireturn // Either a port or a placeholder.
func openInput(ctx context.Context, name string, open func(string) (adaptor.Source, error)) adaptor.Source {
	if open == nil {
		open = func(name string) (adaptor.Source, error) {
			return midiport.Open(name)
		}
	}

	port, err := open(name)
	if err != nil {
		logger.WarnKV(ctx, "MIDI input unavailable", "port", name, "error", err)

		return midiport.Unavailable{Err: err}
	}

	return port
}

// autostart starts the transport once the clock is ready.
func autostart(ctx context.Context, sup *supervisor.Supervisor) {
	report, err := sup.Wait(ctx)
	if err != nil {
		return
	}

	if _, ok := report.(clock.Ready); !ok {
		return
	}

	if err = sup.Controller().Send(ctx, clock.Start{}); err != nil {
		logger.WarnKV(ctx, "Autostart failed", "error", err)

		return
	}

	logger.Info(ctx, "Transport started automatically")
}
