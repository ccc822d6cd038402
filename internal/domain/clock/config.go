package clock

import (
	"math"
	"time"
)

const (
	// MinTempo is the slowest accepted tempo in beats per minute.
	MinTempo = 20
	// MaxTempo is the fastest accepted tempo in beats per minute.
	MaxTempo = 300
	// DefaultTempo is the tempo a controller starts with.
	DefaultTempo = 120
	// DefaultSwing is the swing amount a controller starts with.
	DefaultSwing = 0.5

	// PulsesPerBeat is the internal resolution: 64 pulses per quarter note.
	PulsesPerBeat = 64
	// WirePulsesPerQuarter is the MIDI realtime clock resolution.
	WirePulsesPerQuarter = 24
)

// Config is the musician-facing clock configuration.
// Swing is carried for the sequence player and has no effect on pulse timing.
type Config struct {
	// Tempo in beats (quarter notes) per minute.
	Tempo int `yaml:"tempo"`
	// Swing amount in [0,1] that offbeats should be offset by.
	Swing float64 `yaml:"swing"`
}

// DefaultConfig returns the configuration a new controller starts with.
func DefaultConfig() Config {
	return Config{
		Tempo: DefaultTempo,
		Swing: DefaultSwing,
	}
}

// Clamp returns c with every value floored/ceilinged into its valid range.
func (c Config) Clamp() Config {
	return Config{
		Tempo: ClampTempo(c.Tempo),
		Swing: ClampSwing(c.Swing),
	}
}

// ClampTempo floors/ceilings bpm to [MinTempo, MaxTempo].
func ClampTempo(bpm int) int {
	return min(max(bpm, MinTempo), MaxTempo)
}

// ClampSwing floors/ceilings amount to [0, 1]. NaN becomes 0.
func ClampSwing(amount float64) float64 {
	if math.IsNaN(amount) {
		return 0
	}

	return math.Min(math.Max(amount, 0), 1)
}

// Period returns the interval between two internal pulses at bpm:
// (60000 / bpm) / 64 milliseconds. The tempo is clamped first.
func Period(bpm int) time.Duration {
	return time.Minute / time.Duration(ClampTempo(bpm)*PulsesPerBeat)
}
