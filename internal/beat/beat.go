// Package beat implements a drift-free periodic scheduler: successive
// returns of Loop are interval apart, measured from the previous return
// rather than from when the caller finished its work.
package beat

import (
	"errors"
	"time"
)

// ErrOverrun is returned by Loop when the caller's work since the previous
// Loop call exceeded the configured interval.
var ErrOverrun = errors.New("beat: loop body too slow")

// Beat schedules periodic work at a fixed interval.
type Beat struct {
	interval time.Duration
	last     time.Time
	started  bool
}

// New creates a Beat with the given tick interval.
func New(interval time.Duration) *Beat {
	return &Beat{interval: interval}
}

// Loop blocks until interval has elapsed since the previous call's return,
// then returns. The first call returns immediately and starts the clock.
// If the time since the previous return already exceeds interval, Loop
// returns ErrOverrun without sleeping.
func (b *Beat) Loop() error {
	now := time.Now()
	if !b.started {
		b.started = true
		b.last = now
		return nil
	}

	elapsed := now.Sub(b.last)
	next := b.last.Add(b.interval)
	if elapsed > b.interval {
		b.last = now
		return ErrOverrun
	}

	time.Sleep(next.Sub(now))
	b.last = next
	return nil
}

// Clear resets timing so the next Loop call returns immediately and starts
// a fresh cadence.
func (b *Beat) Clear() {
	b.started = false
}
