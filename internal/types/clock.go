package types

import "time"

// Clock abstracts time for components that must be deterministic under
// test: token verification, the pricing worker, and period close.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// RealClock returns the wall clock in UTC
func RealClock() Clock {
	return realClock{}
}

// FixedClock is a Clock pinned to a single instant
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time {
	return c.At
}
