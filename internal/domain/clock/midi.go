package clock

// MIDI realtime status bytes recognised by the external clock adaptor.
const (
	StatusTimingClock byte = 0xF8
	StatusStart       byte = 0xFA
	StatusContinue    byte = 0xFB
	StatusStop        byte = 0xFC
)

// Constructor builds an event from a raw message and its timestamp in milliseconds.
type Constructor func(msg []byte, timestamp int32) Event

// Mapping maps the first byte of a message to the event it produces.
type Mapping map[byte]Constructor

// CanonicalMapping returns the MIDI realtime transport mapping:
// 0xF8 pulse, 0xFA start, 0xFB continue, 0xFC stop.
func CanonicalMapping() Mapping {
	return Mapping{
		StatusTimingClock: func([]byte, int32) Event { return Pulse{} },
		StatusStart:       func([]byte, int32) Event { return Start{} },
		StatusContinue:    func([]byte, int32) Event { return Continue{} },
		StatusStop:        func([]byte, int32) Event { return Stop{} },
	}
}
