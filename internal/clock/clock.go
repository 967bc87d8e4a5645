// Package clock abstracts time so waits can be driven by tests.
package clock

import "time"

// Clock allows for dependency injection of time functions
type Clock interface {
	Now() time.Time
	After(duration time.Duration) <-chan time.Time
}

// Real implements Clock using the time package
type Real struct{}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) After(duration time.Duration) <-chan time.Time {
	return time.After(duration)
}

// Since returns the time elapsed on c since t.
func Since(c Clock, t time.Time) time.Duration {
	return c.Now().Sub(t)
}
