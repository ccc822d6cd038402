// Package clock contains the core domain types of the clock backbone.
//
// It defines the tempo/swing Config with its clamping rules, the transport
// states, the events flowing into the clock controller, the commands sent to
// the sequence consumer and the reports sent to the supervisor. The MIDI
// realtime status bytes and the pulse resolutions live here too.
package clock
