package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/squ-clock/internal/domain/clock"
	"github.com/oshokin/squ-clock/internal/logger"
)

// Drift correction policy names.
const (
	DriftMeasured = "measured"
	DriftFixed    = "fixed"
	DriftNone     = "none"
)

// Config holds the settings of the clock process.
type Config struct {
	// Clock holds tempo, swing and source selection.
	Clock ClockSettings `yaml:"clock"`
	// MIDI holds the external clock input settings.
	MIDI MIDISettings `yaml:"midi"`
	// HealthAddress is where the gRPC health endpoint listens; empty disables it.
	HealthAddress string `yaml:"health_addr"`
	// StateFile is where the last tempo, swing and source are persisted.
	StateFile string `yaml:"state_file"`
	// LogLevel is the global log level.
	LogLevel string `yaml:"log_level"`
	// SequenceLogLevel is the level of the high-rate sequence consumer logger.
	SequenceLogLevel string `yaml:"sequence_log_level"`
	// Timeout bounds network calls made by the status command.
	Timeout time.Duration `yaml:"timeout"`
}

// ClockSettings configures the clock controller.
type ClockSettings struct {
	// Tempo in beats per minute, clamped to [20,300].
	Tempo int `yaml:"tempo"`
	// Swing amount, clamped to [0,1]. Carried for the player only.
	Swing float64 `yaml:"swing"`
	// Source is the clock source activated at start.
	Source clock.SourceKind `yaml:"source"`
	// Autostart sends START as soon as the source is ready.
	Autostart bool `yaml:"autostart"`
	// Drift selects the internal generator drift correction.
	Drift DriftSettings `yaml:"drift"`
	// MailboxSize is the buffer of every actor mailbox.
	MailboxSize int `yaml:"mailbox_size"`
}

// DriftSettings selects and tunes the drift correction of the internal generator.
type DriftSettings struct {
	// Policy is one of measured, fixed or none.
	Policy string `yaml:"policy"`
	// Correction is subtracted from every period by the fixed policy.
	Correction time.Duration `yaml:"correction"`
}

// MIDISettings configures the external clock input.
type MIDISettings struct {
	// InputPort is the name (or name fragment) of the MIDI input carrying the clock.
	InputPort string `yaml:"input_port"`
	// NormalizePulses converts 24 wire pulses per quarter into 64 logical pulses.
	NormalizePulses bool `yaml:"normalize_pulses"`
	// EstimateTempo measures the external tempo from pulse spacing.
	EstimateTempo bool `yaml:"estimate_tempo"`
}

const (
	// DefaultConfigFilename is the default filename for the clock settings.
	DefaultConfigFilename = "squ-clock-settings.yaml"

	// DefaultStateFilename is the default filename for persisted clock state.
	DefaultStateFilename = "squ-clock-state.yaml"

	// DefaultHealthAddress is the default gRPC health listen address.
	DefaultHealthAddress = "127.0.0.1:50061"

	// DefaultInputPort is the MIDI input the external clock is read from.
	DefaultInputPort = "squ-clock-in"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultFixedCorrection is the subtractive correction of the reference design.
	DefaultFixedCorrection = 820 * time.Microsecond

	// DefaultFilePermissions is the default file permission for written files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownDriftPolicy is returned for drift policies other than measured/fixed/none.
	errUnknownDriftPolicy = errors.New("unknown drift policy")
	// errUnknownLogLevel is returned for unparsable log levels.
	errUnknownLogLevel = errors.New("unknown log level")
	// errNegativeCorrection is returned when the fixed correction is negative.
	errNegativeCorrection = errors.New("drift correction must not be negative")
)

// Default returns the settings used when no file exists.
func Default() *Config {
	return &Config{
		Clock: ClockSettings{
			Tempo:  clock.DefaultTempo,
			Swing:  clock.DefaultSwing,
			Source: clock.Internal,
			Drift: DriftSettings{
				Policy:     DriftMeasured,
				Correction: DefaultFixedCorrection,
			},
		},
		MIDI: MIDISettings{
			InputPort:       DefaultInputPort,
			NormalizePulses: true,
		},
		HealthAddress:    DefaultHealthAddress,
		StateFile:        DefaultStateFilename,
		LogLevel:         "info",
		SequenceLogLevel: "info",
		Timeout:          DefaultTimeout,
	}
}

// Load reads settings from path on top of the defaults and validates them.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	cfg := Default()

	contents, err := os.ReadFile(filepath.Clean(path))
	switch {
	case errors.Is(err, os.ErrNotExist):
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate clamps musical values, fills defaults and checks the rest.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	// Musical values are clamped, never rejected.
	musical := clock.Config{Tempo: cfg.Clock.Tempo, Swing: cfg.Clock.Swing}.Clamp()
	cfg.Clock.Tempo, cfg.Clock.Swing = musical.Tempo, musical.Swing

	cfg.Clock.Drift.Policy = strings.ToLower(strings.TrimSpace(cfg.Clock.Drift.Policy))
	switch cfg.Clock.Drift.Policy {
	case "":
		cfg.Clock.Drift.Policy = DriftMeasured
	case DriftMeasured, DriftFixed, DriftNone:
	default:
		return fmt.Errorf("%w: %q", errUnknownDriftPolicy, cfg.Clock.Drift.Policy)
	}

	if cfg.Clock.Drift.Correction < 0 {
		return errNegativeCorrection
	}

	if cfg.Clock.Drift.Policy == DriftFixed && cfg.Clock.Drift.Correction == 0 {
		cfg.Clock.Drift.Correction = DefaultFixedCorrection
	}

	for _, level := range []string{cfg.LogLevel, cfg.SequenceLogLevel} {
		if _, ok := logger.ParseLogLevel(level); !ok {
			return fmt.Errorf("%w: %q", errUnknownLogLevel, level)
		}
	}

	if cfg.HealthAddress != "" {
		if _, _, err := net.SplitHostPort(cfg.HealthAddress); err != nil {
			return fmt.Errorf("invalid health address: %w", err)
		}
	}

	if cfg.MIDI.InputPort == "" {
		cfg.MIDI.InputPort = DefaultInputPort
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.StateFile == "" {
		cfg.StateFile = DefaultStateFilename
	}

	return nil
}
