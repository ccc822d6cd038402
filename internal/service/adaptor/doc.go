// Package adaptor implements the external clock adaptor.
//
// An Adaptor subscribes to a byte-message Source (a MIDI input in production),
// decodes the first byte of every message through a clock.Mapping and sends
// the resulting events to its owner. Setup failures are reported to the owner
// as an event instead of the ready signal; unrecognised or malformed input is
// dropped.
package adaptor
