// Package clock abstracts the time operations used by periodic producers so
// tests can drive them deterministically.
package clock

import "time"

// Clock is the subset of the time package that producers depend on.
type Clock interface {
	Now() time.Time
	// After returns a channel that receives once d has elapsed.
	After(d time.Duration) <-chan time.Time
	// Sleep pauses the calling goroutine for at least d.
	Sleep(d time.Duration)
}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (realClock) Sleep(d time.Duration)                  { time.Sleep(d) }
