package adaptor

// tempoEstimator derives beats per minute from the timestamps of wire pulses.
// It reports once per quarter note, using the spacing of the last quarter.
type tempoEstimator struct {
	perQuarter int
	count      int
	first      int32
	started    bool
}

func newTempoEstimator(perQuarter int) *tempoEstimator {
	return &tempoEstimator{perQuarter: perQuarter}
}

// observe records a pulse at ts (milliseconds) and returns an estimate once a
// full quarter note has been measured.
func (e *tempoEstimator) observe(ts int32) (float64, bool) {
	if !e.started {
		e.started = true
		e.first = ts
		e.count = 0

		return 0, false
	}

	e.count++
	if e.count < e.perQuarter {
		return 0, false
	}

	elapsed := ts - e.first
	e.first = ts
	e.count = 0

	if elapsed <= 0 {
		return 0, false
	}

	return 60000 / float64(elapsed), true
}

func (e *tempoEstimator) reset() {
	e.started = false
	e.count = 0
}
