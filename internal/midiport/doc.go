// Package midiport binds a MIDI input port to the external clock adaptor.
//
// The driver is registered by the binary, not here, so the package can be
// tested without a MIDI backend.
package midiport
