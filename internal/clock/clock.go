// Package clock abstracts wall-clock time and tickers so background loops can be
// driven deterministically in tests.
package clock

import "time"

// Clock reports the current time and creates tickers.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Real is a Clock backed by the time package. All times are reported in Location.
type Real struct {
	Location *time.Location
}

// New returns a real clock reporting times in loc (UTC when nil).
func New(loc *time.Location) Real {
	if loc == nil {
		loc = time.UTC
	}
	return Real{Location: loc}
}

func (r Real) Now() time.Time {
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	return time.Now().In(loc)
}

func (r Real) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

// Today returns midnight of t's calendar day in t's location.
func Today(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
