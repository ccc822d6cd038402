// Package generator implements the internal clock generator.
//
// A Generator emits clock.Pulse to its owner every (60000/bpm)/64 ms. The
// wait before each pulse is decided by a pluggable DriftPolicy: the reference
// design subtracts a fixed correction from every period, while the default
// policy schedules against absolute deadlines so that measured lateness is
// absorbed by the following wait.
//
// Average rate is not enough: a policy must also bound jitter. The measured
// policy resynchronises after a stall longer than one period instead of
// firing a burst of catch-up pulses.
//
// Swing is accepted and recorded but does not change emitted timing.
package generator
