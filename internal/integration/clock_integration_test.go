package integration

import (
	"context"
	"errors"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/squ-clock/internal/config"
	"github.com/oshokin/squ-clock/internal/domain/clock"
	repository "github.com/oshokin/squ-clock/internal/repository/state"
	"github.com/oshokin/squ-clock/internal/service/adaptor"
	"github.com/oshokin/squ-clock/internal/service/clockd"
	"github.com/oshokin/squ-clock/internal/service/status"
)

var errNoInterface = errors.New("no MIDI interface attached")

// reservePort returns a free local address for the health endpoint.
func reservePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	_ = l.Close()

	return addr
}

// clockProcess is a clock running in the background of a test.
type clockProcess struct {
	console *io.PipeWriter
	cancel  context.CancelFunc
	done    chan error
}

// startClock runs clockd with a temporary config and a pipe as console.
func startClock(t *testing.T, addr, statePath string, source clock.SourceKind) *clockProcess {
	t.Helper()

	cfgPath := filepath.Join(t.TempDir(), "settings.yaml")

	settings := config.Default()
	settings.HealthAddress = addr
	settings.StateFile = statePath
	settings.Clock.Source = source
	settings.Clock.Tempo = 240
	settings.Timeout = time.Second
	require.NoError(t, config.Save(cfgPath, settings))

	reader, writer := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())

	p := &clockProcess{
		console: writer,
		cancel:  cancel,
		done:    make(chan error, 1),
	}

	go func() {
		p.done <- clockd.Run(ctx, &clockd.Options{
			ConfigPath: cfgPath,
			Console:    reader,
			OpenPort: func(string) (adaptor.Source, error) {
				return nil, errNoInterface
			},
		})
	}()

	t.Cleanup(func() {
		cancel()
		_ = writer.Close()
	})

	return p
}

// send writes console lines; each write returns once the console consumed it.
func (p *clockProcess) send(t *testing.T, lines ...string) {
	t.Helper()

	for _, line := range lines {
		_, err := io.WriteString(p.console, line+"\n")
		require.NoError(t, err)
	}
}

// stop cancels the clock and waits for Run to return.
func (p *clockProcess) stop(t *testing.T) {
	t.Helper()

	p.cancel()

	select {
	case err := <-p.done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("clock did not stop")
	}
}

func waitServing(t *testing.T, addr string) error {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	return status.Run(ctx, &status.Options{
		ConfigPath:   filepath.Join(t.TempDir(), "absent.yaml"),
		Address:      addr,
		Wait:         true,
		PollInterval: 20 * time.Millisecond,
	})
}

// TestClock_InternalRoundtrip starts the clock, drives it from the console and checks the persisted state.
func TestClock_InternalRoundtrip(t *testing.T) {
	t.Parallel()

	addr := reservePort(t)
	statePath := filepath.Join(t.TempDir(), "state.yaml")

	p := startClock(t, addr, statePath, clock.Internal)

	require.NoError(t, waitServing(t, addr))

	p.send(t, "start", "tempo 100", "swing 0.75", "status", "bogus", "status")
	p.stop(t)

	saved, err := repository.NewFileRepository(statePath).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, clock.Config{Tempo: 100, Swing: 0.75}, saved.Clock)
	require.Equal(t, clock.Internal, saved.Source)
}

// TestClock_ExternalWithoutInterface verifies a missing MIDI input leaves the process up but not serving.
func TestClock_ExternalWithoutInterface(t *testing.T) {
	t.Parallel()

	addr := reservePort(t)
	p := startClock(t, addr, filepath.Join(t.TempDir(), "state.yaml"), clock.External)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := status.Run(ctx, &status.Options{
		ConfigPath:   filepath.Join(t.TempDir(), "absent.yaml"),
		Address:      addr,
		Wait:         true,
		PollInterval: 20 * time.Millisecond,
	})
	require.Error(t, err)

	// The console still answers while errored.
	p.send(t, "start", "status")
	p.stop(t)
}
