package domain

import "time"

// Clock abstracts the current time so deadline checks can be driven
// deterministically in tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func NewRealClock() Clock {
	return realClock{}
}

// FixedClock always reports the same instant. Test helper.
type FixedClock struct {
	Time time.Time
}

func (c FixedClock) Now() time.Time {
	return c.Time
}
