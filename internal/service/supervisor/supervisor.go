package supervisor

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/multierr"

	"github.com/oshokin/squ-clock/internal/domain/clock"
	"github.com/oshokin/squ-clock/internal/logger"
	"github.com/oshokin/squ-clock/internal/service/adaptor"
	"github.com/oshokin/squ-clock/internal/service/common"
	"github.com/oshokin/squ-clock/internal/service/controller"
	"github.com/oshokin/squ-clock/internal/service/generator"
	"github.com/oshokin/squ-clock/internal/service/sequence"
)

// Observer is notified about every controller report.
type Observer interface {
	Observe(ctx context.Context, report clock.Report)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, report clock.Report)

// Observe implements Observer.
func (f ObserverFunc) Observe(ctx context.Context, report clock.Report) {
	f(ctx, report)
}

// Options configures the supervised tree.
type Options struct {
	Clock           clock.Config
	Source          clock.SourceKind
	ByteSource      adaptor.Source
	Drift           generator.DriftPolicy
	NormalizePulses bool
	EstimateTempo   bool
	MailboxSize     int
	Observers       []Observer
	// SequenceLogLevel overrides the log level of the sequence player.
	SequenceLogLevel string
}

// Supervisor is the root of the actor tree.
type Supervisor struct {
	mailbox    *common.Mailbox[clock.Report]
	player     *sequence.Player
	controller *controller.Controller
	byteSource adaptor.Source
	observers  []Observer

	reportOnce sync.Once
	reported   chan struct{}
	first      clock.Report

	closeOnce sync.Once
	closeErr  error
}

// New builds the sequence player, then the controller wired to it. The
// supervisor keeps both until Close.
func New(ctx context.Context, opts Options) (*Supervisor, error) {
	ctx = logger.WithName(ctx, "supervisor")

	s := &Supervisor{
		mailbox:    common.NewMailbox[clock.Report]("supervisor", opts.MailboxSize),
		byteSource: opts.ByteSource,
		observers:  opts.Observers,
		reported:   make(chan struct{}),
	}

	// Reports can only arrive once the controller exists, but the mailbox
	// must already be draining by then.
	s.mailbox.Start(ctx, s.handle)

	playerCtx := ctx
	if level, ok := logger.ParseLogLevel(opts.SequenceLogLevel); ok && opts.SequenceLogLevel != "" {
		playerCtx = logger.WithLevelContext(ctx, level)
	}

	s.player = sequence.NewPlayer(playerCtx, opts.MailboxSize)

	ctrl, err := controller.New(ctx, controller.Options{
		Config:          opts.Clock,
		Source:          opts.Source,
		Downstream:      s.player,
		Parent:          s.mailbox,
		ByteSource:      opts.ByteSource,
		Drift:           opts.Drift,
		NormalizePulses: opts.NormalizePulses,
		EstimateTempo:   opts.EstimateTempo,
		MailboxSize:     opts.MailboxSize,
	})
	if err != nil {
		s.player.Stop()
		s.mailbox.Stop()

		return nil, fmt.Errorf("create clock controller: %w", err)
	}

	s.controller = ctrl

	logger.InfoKV(ctx, "Supervisor started", "source", opts.Source, "tempo", opts.Clock.Tempo)

	return s, nil
}

// Controller returns the clock controller handle.
func (s *Supervisor) Controller() *controller.Controller {
	return s.controller
}

// Player returns the sequence player handle.
func (s *Supervisor) Player() *sequence.Player {
	return s.player
}

// Wait blocks until the controller reported READY or CLOCK_ERROR and returns
// that report.
func (s *Supervisor) Wait(ctx context.Context) (clock.Report, error) {
	select {
	case <-s.reported:
		return s.first, nil
	case <-s.mailbox.Done():
		return nil, common.ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close tears down the controller, then the player, then closes the byte
// source and observers that hold resources.
func (s *Supervisor) Close() error {
	s.closeOnce.Do(func() {
		s.controller.Stop()
		s.player.Stop()
		s.mailbox.Stop()

		if closer, ok := s.byteSource.(io.Closer); ok {
			s.closeErr = multierr.Append(s.closeErr, closer.Close())
		}

		for _, o := range s.observers {
			if closer, ok := o.(io.Closer); ok {
				s.closeErr = multierr.Append(s.closeErr, closer.Close())
			}
		}
	})

	return s.closeErr
}

func (s *Supervisor) handle(ctx context.Context, report clock.Report) {
	switch r := report.(type) {
	case clock.Ready:
		logger.Info(ctx, "Clock is ready")
	case clock.ClockError:
		// No restart: the process stays up and reports the failure.
		logger.ErrorKV(ctx, "Clock failed", "error", r.Err)
	}

	s.reportOnce.Do(func() {
		s.first = report
		close(s.reported)
	})

	for _, o := range s.observers {
		o.Observe(ctx, report)
	}
}
