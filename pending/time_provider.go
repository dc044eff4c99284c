package pending

import "time"

// TimeProvider supplies the clock a Table computes deadlines against and
// the ticker that drives Run. Tests substitute a controllable clock.
type TimeProvider interface {
	Now() time.Time
	NewTicker(d time.Duration) *time.Ticker
}

// SystemClock is the wall-clock TimeProvider used when none is injected.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) NewTicker(d time.Duration) *time.Ticker { return time.NewTicker(d) }

func clockOrDefault(tp TimeProvider) TimeProvider {
	if tp == nil {
		return SystemClock{}
	}
	return tp
}
