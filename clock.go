package kvlite

import "time"

// Clock provides the current time. Stores use a system clock by default;
// tests substitute a fake to exercise expiry without sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}
