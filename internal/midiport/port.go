package midiport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/oshokin/squ-clock/internal/logger"
	"github.com/oshokin/squ-clock/internal/service/adaptor"
)

// ErrPortBusy is returned when a port already has a subscriber.
var ErrPortBusy = errors.New("MIDI port is already subscribed")

// listenFunc matches midi.ListenTo.
type listenFunc func(
	in drivers.In,
	recv func(msg midi.Message, timestampms int32),
	opts ...midi.Option,
) (func(), error)

// Port is a MIDI input that delivers raw messages, realtime clock included,
// to a single subscriber.
type Port struct {
	// ctx carries the logger for driver callbacks.
	ctx    context.Context //nolint:containedctx // Driver callbacks have no context of their own.
	name   string
	in     drivers.In
	listen listenFunc

	mu   sync.Mutex
	busy bool
}

// Open finds the input port whose name contains name.
func Open(name string) (*Port, error) {
	in, err := midi.FindInPort(name)
	if err != nil {
		return nil, fmt.Errorf("find MIDI input %q: %w", name, err)
	}

	return NewPort(in), nil
}

// NewPort wraps an input port of a registered driver.
func NewPort(in drivers.In) *Port {
	name := ""
	if in != nil {
		name = in.String()
	}

	return &Port{
		ctx:    logger.WithKV(logger.WithName(context.Background(), "midiport"), "port", name),
		name:   name,
		in:     in,
		listen: midi.ListenTo,
	}
}

// Name returns the driver name of the port.
func (p *Port) Name() string {
	return p.name
}

// Subscribe implements adaptor.Source.
func (p *Port) Subscribe(handler adaptor.Handler) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.busy {
		return nil, ErrPortBusy
	}

	stop, err := p.listen(p.in,
		func(msg midi.Message, timestampms int32) {
			handler(timestampms, msg.Bytes())
		},
		// Timing clock is filtered by the driver unless time code is enabled.
		midi.UseTimeCode(),
		midi.HandleError(func(err error) {
			logger.WarnKV(p.ctx, "MIDI listener error", "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("listen on MIDI input %q: %w", p.name, err)
	}

	p.busy = true

	var once sync.Once

	return func() {
		once.Do(func() {
			stop()

			p.mu.Lock()
			p.busy = false
			p.mu.Unlock()
		})
	}, nil
}

// Close closes the underlying port.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.in == nil || !p.in.IsOpen() {
		return nil
	}

	if err := p.in.Close(); err != nil {
		return fmt.Errorf("close MIDI input %q: %w", p.name, err)
	}

	return nil
}

// Unavailable is a source whose subscription always fails. It stands in for
// a port that could not be opened so the failure reaches the controller.
type Unavailable struct {
	Err error
}

// Subscribe implements adaptor.Source.
func (u Unavailable) Subscribe(adaptor.Handler) (func(), error) {
	if u.Err == nil {
		return nil, ErrNoPort
	}

	return nil, u.Err
}

// ErrNoPort is reported by an Unavailable source without a cause.
var ErrNoPort = errors.New("no MIDI input port")
