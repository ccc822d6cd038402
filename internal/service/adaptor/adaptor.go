package adaptor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/oshokin/squ-clock/internal/domain/clock"
	"github.com/oshokin/squ-clock/internal/logger"
	"github.com/oshokin/squ-clock/internal/service/common"
)

// Handler receives a message and its timestamp in milliseconds.
type Handler func(timestamp int32, msg []byte)

// Source is a byte-message stream. Subscribe registers handler and returns a
// function that removes it; it fails when the stream cannot be set up.
type Source interface {
	Subscribe(handler Handler) (unsubscribe func(), err error)
}

// ErrSubscribePanicked wraps a panic raised by Source.Subscribe.
var ErrSubscribePanicked = errors.New("subscribe panicked")

// Option configures an Adaptor.
type Option func(*Adaptor)

// WithPulseRatio converts pulses from wire resolution to logical resolution,
// e.g. WithPulseRatio(64, 24) turns 24 MIDI clocks into 64 pulses per quarter.
func WithPulseRatio(logical, wire int) Option {
	return func(a *Adaptor) {
		if logical > 0 && wire > 0 && logical != wire {
			a.scaler = &pulseScaler{logical: logical, wire: wire}
		}
	}
}

// WithTempoEstimate measures the wire pulse spacing and sends clock.ExternalTempo
// once per quarter note.
func WithTempoEstimate() Option {
	return func(a *Adaptor) {
		a.estimator = newTempoEstimator(clock.WirePulsesPerQuarter)
	}
}

// Adaptor turns a byte-message source into clock events for its owner.
type Adaptor struct {
	owner   common.Ref[clock.Event]
	mapping clock.Mapping

	scaler    *pulseScaler
	estimator *tempoEstimator

	// ctx bounds sends to the owner; cancelled by Stop.
	ctx    context.Context //nolint:containedctx // Lifetime of the subscription.
	cancel context.CancelFunc

	// mu serialises message handling against Stop.
	mu          sync.Mutex
	active      bool
	closed      bool
	unsubscribe func()
}

// New subscribes to source and reports to owner: ready on success, or
// onError(err) on failure, never both. The subscription is set up before New
// returns.
func New(
	ctx context.Context,
	source Source,
	mapping clock.Mapping,
	onError func(error) clock.Event,
	ready clock.Event,
	owner common.Ref[clock.Event],
	opts ...Option,
) *Adaptor {
	ctx, cancel := context.WithCancel(logger.WithName(ctx, "adaptor"))

	a := &Adaptor{
		owner:   owner,
		mapping: mapping,
		ctx:     ctx,
		cancel:  cancel,
	}

	for _, opt := range opts {
		opt(a)
	}

	if onError == nil {
		onError = func(err error) clock.Event { return clock.SourceError{Err: err} }
	}

	unsubscribe, err := subscribe(source, a.handle)
	if err != nil {
		logger.ErrorKV(ctx, "External clock subscription failed", "error", err)

		go a.announce(onError(err), false)

		return a
	}

	a.mu.Lock()
	a.unsubscribe = unsubscribe
	a.mu.Unlock()

	logger.DebugKV(ctx, "External clock subscribed")

	// The owner may be the caller itself, so the signal goes out asynchronously.
	go a.announce(ready, true)

	return a
}

// announce sends the setup outcome to the owner. Messages are dispatched only
// after a successful ready signal went out.
func (a *Adaptor) announce(e clock.Event, activate bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || e == nil {
		return
	}

	if err := a.owner.Send(a.ctx, e); err != nil {
		logger.DebugKV(a.ctx, "Setup outcome not delivered", "error", err)

		return
	}

	if activate {
		a.active = true
	} else {
		a.closed = true
	}
}

// subscribe calls source.Subscribe, turning a panic into an error.
func subscribe(source Source, handler Handler) (unsubscribe func(), err error) {
	if source == nil {
		return nil, ErrNoSource
	}

	defer func() {
		if r := recover(); r != nil {
			unsubscribe = nil
			err = fmt.Errorf("%w: %v", ErrSubscribePanicked, r)
		}
	}()

	return source.Subscribe(handler)
}

// ErrNoSource is reported when the adaptor is created without a source.
var ErrNoSource = errors.New("no byte-message source")

// Stop unsubscribes from the source. Once Stop returns no handler is running
// and nothing more is sent to the owner.
func (a *Adaptor) Stop() {
	// Unblock a handler waiting on the owner before taking the lock.
	a.cancel()

	a.mu.Lock()
	a.closed = true
	unsubscribe := a.unsubscribe
	a.unsubscribe = nil
	a.mu.Unlock()

	// Outside the lock: a driver may wait for its callback to return.
	if unsubscribe != nil {
		unsubscribe()
	}
}

// handle is called by the source for every inbound message.
func (a *Adaptor) handle(timestamp int32, msg []byte) {
	defer func() {
		// Malformed input must never take the owner down.
		if r := recover(); r != nil {
			logger.WarnKV(a.ctx, "Dropped malformed message", "message", fmt.Sprintf("% X", msg), "panic", r)
		}
	}()

	if len(msg) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || !a.active {
		return
	}

	build, ok := a.mapping[msg[0]]
	if !ok || build == nil {
		return
	}

	event := build(msg, timestamp)
	if event == nil {
		return
	}

	switch event.(type) {
	case clock.Pulse:
		a.estimate(timestamp)

		for range a.scale() {
			a.notify(event)
		}

		return

	case clock.Start:
		if a.scaler != nil {
			a.scaler.reset()
		}

		if a.estimator != nil {
			a.estimator.reset()
		}
	}

	a.notify(event)
}

// scale returns how many logical pulses one wire pulse produces.
func (a *Adaptor) scale() int {
	if a.scaler == nil {
		return 1
	}

	return a.scaler.next()
}

// estimate feeds the tempo estimator and forwards a fresh estimate.
func (a *Adaptor) estimate(timestamp int32) {
	if a.estimator == nil {
		return
	}

	if bpm, ok := a.estimator.observe(timestamp); ok {
		a.notify(clock.ExternalTempo{BPM: bpm})
	}
}

// notify sends e to the owner unless the adaptor is shutting down.
func (a *Adaptor) notify(e clock.Event) {
	if e == nil {
		return
	}

	if err := a.owner.Send(a.ctx, e); err != nil {
		logger.DebugKV(a.ctx, "Event not delivered", "event", fmt.Sprintf("%T", e), "error", err)
	}
}
