package clock

import (
	"fmt"
	"strings"
)

// TransportState is the state of the clock controller.
type TransportState int

const (
	// Idle waits for the clock source to confirm it is available.
	Idle TransportState = iota
	// Stopped has a working source but does not forward pulses.
	Stopped
	// Running forwards every pulse downstream.
	Running
	// Errored is terminal: the clock source could not be set up.
	Errored
)

// String implements fmt.Stringer.
func (s TransportState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("TransportState(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s TransportState) Terminal() bool {
	return s == Errored
}

// SourceKind selects where pulses come from.
type SourceKind int

const (
	// Internal pulses come from the tempo driven generator.
	Internal SourceKind = iota
	// External pulses come from a MIDI realtime byte stream.
	External
)

// String implements fmt.Stringer.
func (k SourceKind) String() string {
	if k == External {
		return "external"
	}

	return "internal"
}

// ParseSourceKind converts "internal" or "external" (case-insensitive).
func ParseSourceKind(s string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "internal", "int", "":
		return Internal, nil
	case "external", "ext":
		return External, nil
	default:
		return Internal, fmt.Errorf("%w: %q", ErrUnknownSource, s)
	}
}

// MarshalYAML stores the kind by name.
func (k SourceKind) MarshalYAML() (any, error) {
	return k.String(), nil
}

// UnmarshalYAML accepts the names understood by ParseSourceKind.
func (k *SourceKind) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}

	parsed, err := ParseSourceKind(raw)
	if err != nil {
		return err
	}

	*k = parsed

	return nil
}
