package clock

import "errors"

// ErrUnknownSource is returned for clock source names other than internal/external.
var ErrUnknownSource = errors.New("unknown clock source")

// Event is a message processed by the clock controller.
// The set of implementations is closed: only this package declares events.
type Event interface {
	isEvent()
}

type (
	// Pulse means one internal tick has elapsed.
	Pulse struct{}
	// Start repositions to the beginning and starts the transport.
	Start struct{}
	// Stop halts the transport; pulses keep arriving but are dropped.
	Stop struct{}
	// Continue resumes the transport without repositioning.
	Continue struct{}
	// SourceReady is sent once by a clock source that is producing events.
	SourceReady struct{}
	// SourceError is sent instead of SourceReady when a source cannot be set up.
	SourceError struct {
		// Err is the underlying setup failure.
		Err error
	}
	// ChangeTempo sets the tempo; out of range values are clamped.
	ChangeTempo struct {
		// BPM is the requested tempo.
		BPM int
	}
	// ChangeSwing sets the swing amount; out of range values are clamped.
	ChangeSwing struct {
		// Amount is the requested swing in [0,1].
		Amount float64
	}
	// SwitchSource replaces the active clock source.
	SwitchSource struct {
		// Kind is the source to activate.
		Kind SourceKind
	}
	// ExternalTempo carries the tempo measured from an external clock.
	ExternalTempo struct {
		// BPM is the estimated tempo.
		BPM float64
	}
)

func (Pulse) isEvent()         {}
func (Start) isEvent()         {}
func (Stop) isEvent()          {}
func (Continue) isEvent()      {}
func (SourceReady) isEvent()   {}
func (SourceError) isEvent()   {}
func (ChangeTempo) isEvent()   {}
func (ChangeSwing) isEvent()   {}
func (SwitchSource) isEvent()  {}
func (ExternalTempo) isEvent() {}

// Command is a transport message for the sequence consumer.
type Command int

const (
	// CommandPulse advances playback by one tick.
	CommandPulse Command = iota + 1
	// CommandReset returns playback to the start position.
	CommandReset
)

// String implements fmt.Stringer.
func (c Command) String() string {
	switch c {
	case CommandPulse:
		return "PULSE"
	case CommandReset:
		return "RESET"
	default:
		return "UNKNOWN"
	}
}

// Report is a controller level signal for the supervisor.
type Report interface {
	isReport()
}

type (
	// Ready is reported once when the clock source became available.
	Ready struct{}
	// ClockError is reported once when the clock source failed to set up.
	ClockError struct {
		// Err is the underlying failure.
		Err error
	}
)

func (Ready) isReport()      {}
func (ClockError) isReport() {}

// Error implements error so a report can be surfaced directly.
func (e ClockError) Error() string {
	if e.Err == nil {
		return "clock error"
	}

	return "clock error: " + e.Err.Error()
}

// Unwrap exposes the underlying failure.
func (e ClockError) Unwrap() error {
	return e.Err
}
