package generator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/squ-clock/internal/domain/clock"
)

// recorder is an owner that timestamps every event it receives.
type recorder struct {
	mu     sync.Mutex
	events []clock.Event
	times  []time.Time
}

// Send records the event with its arrival time.
func (r *recorder) Send(_ context.Context, e clock.Event) error {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)
	r.times = append(r.times, now)

	return nil
}

// pulseTimes returns the arrival times of every Pulse so far.
func (r *recorder) pulseTimes() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []time.Time

	for i, e := range r.events {
		if _, ok := e.(clock.Pulse); ok {
			out = append(out, r.times[i])
		}
	}

	return out
}

// averageInterval returns the mean spacing of the given times in milliseconds.
func averageInterval(times []time.Time) float64 {
	if len(times) < 2 {
		return 0
	}

	total := times[len(times)-1].Sub(times[0])

	return float64(total) / float64(time.Millisecond) / float64(len(times)-1)
}

// TestPolicies checks the wait computed by every drift policy.
func TestPolicies(t *testing.T) {
	t.Parallel()

	var (
		period = 8 * time.Millisecond
		due    = time.Unix(0, 0)
	)

	require.Equal(t, period, NoCorrection{}.Next(period, due, due.Add(time.Millisecond)))

	require.Equal(t, 7180*time.Microsecond, FixedCorrection{Amount: 820 * time.Microsecond}.Next(period, due, due))
	require.Equal(t, time.Duration(0), FixedCorrection{Amount: time.Second}.Next(period, due, due))

	measured := MeasuredCorrection{}
	require.Equal(t, 7*time.Millisecond, measured.Next(period, due, due.Add(time.Millisecond)))
	require.Equal(t, 9*time.Millisecond, measured.Next(period, due, due.Add(-time.Millisecond)))
	// A stall longer than a period resyncs instead of bursting.
	require.Equal(t, period, measured.Next(period, due, due.Add(20*time.Millisecond)))
}

// TestGenerator_AnnouncesReadyThenPulses verifies SourceReady precedes the first pulse.
func TestGenerator_AnnouncesReadyThenPulses(t *testing.T) {
	t.Parallel()

	rec := new(recorder)
	g := New(context.Background(), rec, 300)

	require.Eventually(t, func() bool { return len(rec.pulseTimes()) >= 3 }, time.Second, time.Millisecond)
	g.Stop()

	rec.mu.Lock()
	defer rec.mu.Unlock()

	require.Equal(t, clock.SourceReady{}, rec.events[0])

	for _, e := range rec.events[1:] {
		require.Equal(t, clock.Pulse{}, e)
	}
}

// TestGenerator_PeriodAccuracy samples one second of pulses and compares the
// mean interval with (60000/bpm)/64 ms within 2%.
//
//nolint:paralleltest // Timing sensitive, runs alone.
func TestGenerator_PeriodAccuracy(t *testing.T) {
	for _, bpm := range []int{clock.MinTempo, 120, clock.MaxTempo} {
		rec := new(recorder)
		g := New(context.Background(), rec, bpm, WithoutReady())

		time.Sleep(time.Second)
		g.Stop()

		want := 60000.0 / float64(bpm) / clock.PulsesPerBeat
		got := averageInterval(rec.pulseTimes())

		require.InEpsilon(t, want, got, 0.02, "bpm %d", bpm)
	}
}

// TestGenerator_FixedCorrectionShortensPeriod ensures the reference policy runs faster than nominal.
//
//nolint:paralleltest // Timing sensitive, runs alone.
func TestGenerator_FixedCorrectionShortensPeriod(t *testing.T) {
	rec := new(recorder)
	g := New(context.Background(), rec, 60, WithoutReady(), WithDriftPolicy(FixedCorrection{Amount: 5 * time.Millisecond}))

	time.Sleep(300 * time.Millisecond)
	g.Stop()

	// 15.625ms nominal minus 5ms; scheduling overhead can only lengthen it.
	got := averageInterval(rec.pulseTimes())
	require.Less(t, got, 15.0)
	require.Greater(t, got, 10.0)
}

// TestGenerator_TempoChange verifies the next period changes without dropping
// or duplicating the pulse in flight.
//
//nolint:paralleltest // Timing sensitive, runs alone.
func TestGenerator_TempoChange(t *testing.T) {
	rec := new(recorder)
	g := New(context.Background(), rec, 120, WithoutReady())

	time.Sleep(200 * time.Millisecond)

	before := len(rec.pulseTimes())
	changedAt := time.Now()

	g.SetTempo(60)
	require.Equal(t, 60, g.Tempo())

	time.Sleep(500 * time.Millisecond)
	g.Stop()

	times := rec.pulseTimes()
	require.Greater(t, len(times), before)

	oldPeriod := clock.Period(120)
	newPeriod := clock.Period(60)

	var after []time.Time

	for i := 1; i < len(times); i++ {
		gap := times[i].Sub(times[i-1])

		// A duplicate shows as a near-zero gap, a drop as a double gap.
		require.Greater(t, gap, oldPeriod/2, "pulse %d duplicated", i)
		require.Less(t, gap, 2*newPeriod+oldPeriod, "pulse %d dropped", i)

		if times[i-1].After(changedAt) {
			after = append(after, times[i])
		}
	}

	want := float64(newPeriod) / float64(time.Millisecond)
	require.InEpsilon(t, want, averageInterval(after), 0.05)
}

// TestGenerator_StopIsFinal ensures no pulse is sent once Stop returned.
func TestGenerator_StopIsFinal(t *testing.T) {
	t.Parallel()

	rec := new(recorder)
	g := New(context.Background(), rec, 300)

	require.Eventually(t, func() bool { return len(rec.pulseTimes()) > 0 }, time.Second, time.Millisecond)
	g.Stop()

	count := len(rec.pulseTimes())

	time.Sleep(30 * time.Millisecond)
	require.Len(t, rec.pulseTimes(), count)

	// Stop is idempotent.
	g.Stop()
}

// TestGenerator_OwnerContextStopsIt ensures the generator dies with its owner.
func TestGenerator_OwnerContextStopsIt(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	g := New(ctx, new(recorder), 120)

	cancel()

	select {
	case <-g.Done():
	case <-time.After(time.Second):
		t.Fatal("generator still running after owner context was cancelled")
	}
}

// TestGenerator_StopWhileOwnerBlocked verifies Stop does not deadlock on a full owner.
func TestGenerator_StopWhileOwnerBlocked(t *testing.T) {
	t.Parallel()

	blocked := make(chan struct{}, 1)
	owner := blockingOwner(blocked)

	g := New(context.Background(), owner, 120)
	<-blocked

	stopped := make(chan struct{})

	go func() {
		g.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop deadlocked on a blocked owner")
	}
}

// TestGenerator_SwingIsRecordedOnly checks swing is clamped and stored.
func TestGenerator_SwingIsRecordedOnly(t *testing.T) {
	t.Parallel()

	g := New(context.Background(), new(recorder), 120)
	defer g.Stop()

	g.SetSwing(3)
	require.InDelta(t, 1.0, g.Swing(), 0)

	g.SetTempo(1000)
	require.Equal(t, clock.MaxTempo, g.Tempo())
}

// blockingOwner returns an owner whose Send blocks until the sender gives up.
func blockingOwner(entered chan<- struct{}) ownerFunc {
	return func(ctx context.Context, _ clock.Event) error {
		select {
		case entered <- struct{}{}:
		default:
		}

		<-ctx.Done()

		return ctx.Err()
	}
}

// ownerFunc adapts a function to the owner handle.
type ownerFunc func(ctx context.Context, e clock.Event) error

// Send calls f.
func (f ownerFunc) Send(ctx context.Context, e clock.Event) error {
	return f(ctx, e)
}
