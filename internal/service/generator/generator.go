package generator

import (
	"context"
	"sync"
	"time"

	"github.com/oshokin/squ-clock/internal/domain/clock"
	"github.com/oshokin/squ-clock/internal/logger"
	"github.com/oshokin/squ-clock/internal/service/common"
)

// Stats summarises emitted pulses.
type Stats struct {
	// Pulses is the number of pulses delivered to the owner.
	Pulses uint64
	// MaxLateness is the worst observed delay between due and fired time.
	MaxLateness time.Duration
}

// Option configures a Generator.
type Option func(*Generator)

// WithDriftPolicy replaces the default MeasuredCorrection policy.
func WithDriftPolicy(p DriftPolicy) Option {
	return func(g *Generator) {
		if p != nil {
			g.policy = p
		}
	}
}

// WithoutReady suppresses the initial clock.SourceReady message.
func WithoutReady() Option {
	return func(g *Generator) {
		g.announce = false
	}
}

// Generator emits pulses to its owner at a tempo derived period.
type Generator struct {
	// owner receives SourceReady and then every Pulse.
	owner common.Ref[clock.Event]
	// policy decides the wait before each pulse.
	policy DriftPolicy
	// announce sends SourceReady before the first pulse.
	announce bool

	// tempo carries re-targeting requests to the timer goroutine.
	tempo chan int

	// cancel stops the timer goroutine; exited is closed when it returned.
	cancel   context.CancelFunc
	exited   chan struct{}
	stopOnce sync.Once

	mu    sync.Mutex
	bpm   int
	swing float64
	stats Stats
}

// New starts a generator at bpm immediately. The generator stops when ctx is
// done or Stop is called.
func New(ctx context.Context, owner common.Ref[clock.Event], bpm int, opts ...Option) *Generator {
	ctx, cancel := context.WithCancel(ctx)

	g := &Generator{
		owner:    owner,
		policy:   MeasuredCorrection{},
		announce: true,
		tempo:    make(chan int, 1),
		cancel:   cancel,
		exited:   make(chan struct{}),
		bpm:      clock.ClampTempo(bpm),
		swing:    clock.DefaultSwing,
	}

	for _, opt := range opts {
		opt(g)
	}

	go g.run(logger.WithName(ctx, "generator"))

	return g
}

// SetTempo re-targets the running timer. The new period applies from the next
// pulse on; the pending pulse is neither dropped nor duplicated.
func (g *Generator) SetTempo(bpm int) {
	bpm = clock.ClampTempo(bpm)

	g.mu.Lock()
	g.bpm = bpm
	g.mu.Unlock()

	// Keep only the latest request.
	for {
		select {
		case g.tempo <- bpm:
			return
		case <-g.exited:
			return
		default:
		}

		select {
		case <-g.tempo:
		default:
		}
	}
}

// SetSwing records the swing amount. It has no effect on pulse timing.
func (g *Generator) SetSwing(amount float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.swing = clock.ClampSwing(amount)
}

// Tempo returns the current tempo.
func (g *Generator) Tempo() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.bpm
}

// Swing returns the recorded swing amount.
func (g *Generator) Swing() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.swing
}

// Stats returns a snapshot of the pulse statistics.
func (g *Generator) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.stats
}

// Stop cancels the timer and returns once the generator can no longer send.
func (g *Generator) Stop() {
	g.stopOnce.Do(g.cancel)
	<-g.exited
}

// Done is closed once the generator stopped.
func (g *Generator) Done() <-chan struct{} {
	return g.exited
}

func (g *Generator) run(ctx context.Context) {
	defer close(g.exited)

	if g.announce {
		if err := g.owner.Send(ctx, clock.SourceReady{}); err != nil {
			return
		}
	}

	period := clock.Period(g.Tempo())
	started := time.Now()
	due := started.Add(period)

	timer := time.NewTimer(period)
	defer timer.Stop()

	logger.DebugKV(ctx, "Internal clock started", "bpm", g.Tempo(), "period", period)

	var lastFired time.Time

	for {
		select {
		case <-ctx.Done():
			logger.DebugKV(ctx, "Internal clock stopped", "pulses", g.Stats().Pulses)
			return

		case bpm := <-g.tempo:
			period = clock.Period(bpm)

			// Re-arm relative to the last pulse so the change lands on the next one.
			anchor := lastFired
			if anchor.IsZero() {
				anchor = started
			}

			due = anchor.Add(period)
			timer.Reset(max(time.Until(due), 0))

			logger.DebugKV(ctx, "Internal clock re-targeted", "bpm", bpm, "period", period)

		case fired := <-timer.C:
			if err := g.owner.Send(ctx, clock.Pulse{}); err != nil {
				return
			}

			g.record(fired.Sub(due))

			wait := g.policy.Next(period, due, fired)
			lastFired = fired
			due = fired.Add(wait)
			timer.Reset(wait)
		}
	}
}

func (g *Generator) record(late time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stats.Pulses++
	if late > g.stats.MaxLateness {
		g.stats.MaxLateness = late
	}
}
