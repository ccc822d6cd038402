package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/oshokin/squ-clock/internal/domain/clock"
	"github.com/oshokin/squ-clock/internal/logger"
	"github.com/oshokin/squ-clock/internal/service/adaptor"
	"github.com/oshokin/squ-clock/internal/service/common"
	"github.com/oshokin/squ-clock/internal/service/generator"
)

// Options configures a Controller.
type Options struct {
	// Config is the initial tempo and swing; clamped on construction.
	Config clock.Config
	// Source is the clock source spawned on entry into Idle.
	Source clock.SourceKind
	// Downstream receives PULSE and RESET. Never reassigned.
	Downstream common.Ref[clock.Command]
	// Parent receives READY or CLOCK_ERROR. Optional.
	Parent common.Ref[clock.Report]
	// ByteSource feeds the external source. It is only subscribed while the
	// external source is active.
	ByteSource adaptor.Source
	// Mapping decodes external messages; defaults to clock.CanonicalMapping.
	Mapping clock.Mapping
	// Drift is the internal generator drift policy; defaults to measured.
	Drift generator.DriftPolicy
	// NormalizePulses converts 24 ppqn wire pulses into 64 logical pulses.
	NormalizePulses bool
	// EstimateTempo measures the tempo of the external clock.
	EstimateTempo bool
	// MailboxSize is the controller mailbox buffer.
	MailboxSize int
}

// Snapshot describes the controller at one point in time.
type Snapshot struct {
	// State is the transport state.
	State clock.TransportState
	// Config is the current tempo and swing.
	Config clock.Config
	// Source is the active source kind.
	Source clock.SourceKind
	// ExternalTempo is the last tempo measured from the external clock, 0 if unknown.
	ExternalTempo float64
	// Pulses is the number of pulses forwarded downstream.
	Pulses uint64
	// Resets is the number of resets sent downstream.
	Resets uint64
}

// ErrDownstreamRequired is returned when no sequence consumer is given.
var ErrDownstreamRequired = errors.New("downstream consumer is required")

// message is a mailbox entry.
type message struct {
	// event is the event to process.
	event clock.Event
	// fromSource marks events emitted by a clock source.
	fromSource bool
	// epoch identifies the source that emitted the event.
	epoch uint64
	// reply requests a snapshot instead of processing an event.
	reply chan<- Snapshot
}

// Controller is the clock controller actor.
type Controller struct {
	opts    Options
	mailbox *common.Mailbox[message]

	// ctx is the lifetime of the controller and its sources.
	ctx    context.Context //nolint:containedctx // Owned actor lifetime.
	cancel context.CancelFunc

	stopOnce sync.Once

	// Fields below are owned by the mailbox goroutine.
	state         clock.TransportState
	config        clock.Config
	source        source
	epoch         uint64
	reported      bool
	externalTempo float64
	pulses        uint64
	resets        uint64
}

// New builds a controller in Idle, spawns its clock source and starts
// processing events.
func New(ctx context.Context, opts Options) (*Controller, error) {
	if opts.Downstream == nil {
		return nil, ErrDownstreamRequired
	}

	if opts.Mapping == nil {
		opts.Mapping = clock.CanonicalMapping()
	}

	if opts.Drift == nil {
		opts.Drift = generator.MeasuredCorrection{}
	}

	ctx, cancel := context.WithCancel(logger.WithName(ctx, "controller"))

	c := &Controller{
		opts:    opts,
		mailbox: common.NewMailbox[message]("controller", opts.MailboxSize),
		ctx:     ctx,
		cancel:  cancel,
		state:   clock.Idle,
		config:  opts.Config.Clamp(),
	}

	// The source exists before the first event is processed.
	c.spawn(opts.Source)

	logger.InfoKV(ctx, "Clock controller created", "source", opts.Source, "tempo", c.config.Tempo)

	c.mailbox.Start(ctx, c.handle)

	return c, nil
}

// Send implements common.Ref so callers can deliver transport and
// configuration events.
func (c *Controller) Send(ctx context.Context, e clock.Event) error {
	if e == nil {
		return nil
	}

	return c.mailbox.Send(ctx, message{event: e})
}

// Snapshot returns the controller state as seen by its own goroutine.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)

	if err := c.mailbox.Send(ctx, message{reply: reply}); err != nil {
		return Snapshot{}, fmt.Errorf("request snapshot: %w", err)
	}

	select {
	case s := <-reply:
		return s, nil
	case <-c.mailbox.Done():
		return Snapshot{}, common.ErrStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Stop destroys the controller: the event loop exits and the active source is
// torn down before Stop returns.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		c.mailbox.Stop()
		c.teardown()
		c.cancel()

		logger.Info(c.ctx, "Clock controller stopped")
	})
}

// Done is closed once the event loop exited.
func (c *Controller) Done() <-chan struct{} {
	return c.mailbox.Done()
}

func (c *Controller) handle(ctx context.Context, msg message) {
	if msg.reply != nil {
		msg.reply <- c.snapshot()

		return
	}

	if msg.fromSource && msg.epoch != c.epoch {
		// Emitted by a source that has been replaced.
		return
	}

	if c.state.Terminal() {
		return
	}

	switch e := msg.event.(type) {
	case clock.SourceReady:
		if msg.fromSource {
			c.onSourceReady(ctx)
		}

	case clock.SourceError:
		if msg.fromSource {
			c.onSourceError(ctx, e.Err)
		}

	case clock.ExternalTempo:
		if msg.fromSource {
			c.externalTempo = e.BPM
		}

	case clock.Start:
		if c.state == clock.Stopped {
			c.transition(ctx, clock.Running, "start")
			c.emit(ctx, clock.CommandReset)
			c.emit(ctx, clock.CommandPulse)
		}

	case clock.Continue:
		if c.state == clock.Stopped {
			c.transition(ctx, clock.Running, "continue")
		}

	case clock.Stop:
		if c.state == clock.Running {
			c.transition(ctx, clock.Stopped, "stop")
		}

	case clock.Pulse:
		// Pulses keep arriving while stopped; only a running transport plays them.
		if c.state == clock.Running {
			c.emit(ctx, clock.CommandPulse)
		}

	case clock.ChangeTempo:
		c.changeTempo(ctx, e.BPM)

	case clock.ChangeSwing:
		c.changeSwing(ctx, e.Amount)

	case clock.SwitchSource:
		c.switchSource(ctx, e.Kind)
	}
}

func (c *Controller) onSourceReady(ctx context.Context) {
	if c.state != clock.Idle {
		return
	}

	c.transition(ctx, clock.Stopped, "source ready")

	if !c.reported {
		c.reported = true
		c.report(ctx, clock.Ready{})
	}
}

func (c *Controller) onSourceError(ctx context.Context, err error) {
	if c.state != clock.Idle {
		// READY already went out: keep the clock alive on the internal generator.
		logger.ErrorKV(ctx, "Clock source failed, falling back to internal clock",
			"source", c.source.kind(), "error", err)

		c.teardown()
		c.spawn(clock.Internal)

		return
	}

	c.teardown()
	c.transition(ctx, clock.Errored, "source error")

	if !c.reported {
		c.reported = true
		c.report(ctx, clock.ClockError{Err: err})
	}
}

func (c *Controller) changeTempo(ctx context.Context, bpm int) {
	c.config.Tempo = clock.ClampTempo(bpm)

	if src, ok := c.source.(internalSource); ok {
		src.gen.SetTempo(c.config.Tempo)
	}

	logger.InfoKV(ctx, "Tempo changed", "requested", bpm, "tempo", c.config.Tempo, "source", c.sourceKind())
}

func (c *Controller) changeSwing(ctx context.Context, amount float64) {
	c.config.Swing = clock.ClampSwing(amount)

	if src, ok := c.source.(internalSource); ok {
		src.gen.SetSwing(c.config.Swing)
	}

	// Swing is stored for the player; pulse timing ignores it.
	logger.InfoKV(ctx, "Swing changed", "requested", amount, "swing", c.config.Swing)
}

func (c *Controller) switchSource(ctx context.Context, kind clock.SourceKind) {
	if c.source != nil && c.source.kind() == kind {
		return
	}

	c.teardown()
	c.spawn(kind)

	logger.InfoKV(ctx, "Clock source switched", "source", kind, "state", c.state)
}

// spawn activates a source of the given kind under a fresh epoch.
func (c *Controller) spawn(kind clock.SourceKind) {
	c.epoch++
	epoch := c.epoch

	sink := common.RefFunc[clock.Event](func(ctx context.Context, e clock.Event) error {
		return c.mailbox.Send(ctx, message{event: e, fromSource: true, epoch: epoch})
	})

	switch kind {
	case clock.External:
		var opts []adaptor.Option
		if c.opts.NormalizePulses {
			opts = append(opts, adaptor.WithPulseRatio(clock.PulsesPerBeat, clock.WirePulsesPerQuarter))
		}

		if c.opts.EstimateTempo {
			opts = append(opts, adaptor.WithTempoEstimate())
		}

		adp := adaptor.New(
			c.ctx,
			c.opts.ByteSource,
			c.opts.Mapping,
			func(err error) clock.Event { return clock.SourceError{Err: err} },
			clock.SourceReady{},
			sink,
			opts...,
		)
		c.source = externalSource{adp: adp}

	default:
		gen := generator.New(c.ctx, sink, c.config.Tempo, generator.WithDriftPolicy(c.opts.Drift))
		gen.SetSwing(c.config.Swing)
		c.source = internalSource{gen: gen}
	}

	c.externalTempo = 0
}

// teardown stops the active source; it returns once the source is inert.
func (c *Controller) teardown() {
	if c.source == nil {
		return
	}

	c.source.stop()
	c.source = nil
}

func (c *Controller) transition(ctx context.Context, to clock.TransportState, cause string) {
	logger.InfoKV(ctx, "Transport changed", "from", c.state, "to", to, "cause", cause)

	c.state = to
}

func (c *Controller) emit(ctx context.Context, cmd clock.Command) {
	if err := c.opts.Downstream.Send(ctx, cmd); err != nil {
		logger.WarnKV(ctx, "Downstream did not accept command", "command", cmd, "error", err)

		return
	}

	switch cmd {
	case clock.CommandPulse:
		c.pulses++
	case clock.CommandReset:
		c.resets++
	}
}

func (c *Controller) report(ctx context.Context, r clock.Report) {
	if c.opts.Parent == nil {
		return
	}

	if err := c.opts.Parent.Send(ctx, r); err != nil {
		logger.WarnKV(ctx, "Supervisor did not accept report", "report", fmt.Sprintf("%T", r), "error", err)
	}
}

func (c *Controller) sourceKind() clock.SourceKind {
	if c.source == nil {
		return c.opts.Source
	}

	return c.source.kind()
}

func (c *Controller) snapshot() Snapshot {
	return Snapshot{
		State:         c.state,
		Config:        c.config,
		Source:        c.sourceKind(),
		ExternalTempo: c.externalTempo,
		Pulses:        c.pulses,
		Resets:        c.resets,
	}
}
