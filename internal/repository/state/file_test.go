package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/squ-clock/internal/domain/clock"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.yaml"))
	s, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, s)
}

// TestFileRepository_SaveLoad ensures Save followed by Load returns the same settings.
func TestFileRepository_SaveLoad(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "state.yaml")
	repo := NewFileRepository(file)

	want := &Settings{
		Clock:   clock.Config{Tempo: 97, Swing: 0.62},
		Source:  clock.External,
		SavedAt: time.Now().UTC().Truncate(time.Second),
	}

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, want.Clock, got.Clock)
	require.Equal(t, want.Source, got.Source)
	require.Equal(t, want.SavedAt.Unix(), got.SavedAt.Unix())

	_, err = os.Stat(file)
	require.NoError(t, err)
}

// TestFileRepository_ClampsAndStamps verifies stored values are clamped on load and SavedAt is filled.
func TestFileRepository_ClampsAndStamps(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(file, []byte("clock:\n  tempo: 900\n  swing: 3\nsource: internal\n"), 0o600))

	repo := NewFileRepository(file)

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, clock.Config{Tempo: clock.MaxTempo, Swing: 1}, got.Clock)
	require.Equal(t, clock.Internal, got.Source)

	require.NoError(t, repo.Save(context.Background(), &Settings{Clock: clock.DefaultConfig()}))

	got, err = repo.Load(context.Background())
	require.NoError(t, err)
	require.False(t, got.SavedAt.IsZero())
}

func TestFileRepository_Malformed(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(file, []byte("source: sideways\n"), 0o600))

	_, err := NewFileRepository(file).Load(context.Background())
	require.Error(t, err)
}
