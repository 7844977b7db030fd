package usecase

import "time"

// Clock returns the current time. Use cases never call time.Now directly so
// tests can move time forward.
type Clock func() time.Time

func SystemClock() time.Time { return time.Now().UTC() }

func orSystemClock(c Clock) Clock {
	if c == nil {
		return SystemClock
	}
	return c
}
