package adaptor

// pulseScaler converts a stream of wire pulses into logical pulses with an
// accumulator, so that exactly `logical` pulses are produced for every `wire`
// inputs.
type pulseScaler struct {
	logical int
	wire    int
	acc     int
}

// next returns the number of logical pulses owed after one more wire pulse.
func (s *pulseScaler) next() int {
	s.acc += s.logical
	n := s.acc / s.wire
	s.acc -= n * s.wire

	return n
}

// reset realigns the accumulator with the start of a beat.
func (s *pulseScaler) reset() {
	s.acc = 0
}
