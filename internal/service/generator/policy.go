package generator

import "time"

// DriftPolicy decides how long to wait before the next pulse.
type DriftPolicy interface {
	// Next returns the wait before the next pulse given the nominal period,
	// the instant the previous pulse was due and the instant it actually fired.
	Next(period time.Duration, due, fired time.Time) time.Duration
}

// NoCorrection waits exactly one period after every pulse; lateness accumulates.
type NoCorrection struct{}

// Next implements DriftPolicy.
func (NoCorrection) Next(period time.Duration, _, _ time.Time) time.Duration {
	return period
}

// FixedCorrection subtracts a constant from every period to offset the expected
// timer overhead. Amount must be tuned per platform.
type FixedCorrection struct {
	// Amount is subtracted from every period.
	Amount time.Duration
}

// Next implements DriftPolicy.
func (f FixedCorrection) Next(period time.Duration, _, _ time.Time) time.Duration {
	return max(period-f.Amount, 0)
}

// MeasuredCorrection schedules against absolute deadlines: the lateness of the
// previous pulse is removed from the next wait.
type MeasuredCorrection struct{}

// Next implements DriftPolicy.
func (MeasuredCorrection) Next(period time.Duration, due, fired time.Time) time.Duration {
	late := fired.Sub(due)
	if late >= period {
		// Stalled for a whole period: resync rather than burst.
		return period
	}

	return period - late
}
