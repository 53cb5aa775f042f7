// Package latch provides the edge-triggered, coalescing notification flag
// that asks the retention engine for a dump.
//
// Producers (a signal handler goroutine, the HTTP trigger endpoint) call Set
// from any goroutine. The single consumer polls and clears the flag with
// PollAndClear, and may block on C to wake up when a notification arrives.
package latch

import "sync/atomic"

// Latch is a single-flag notification.
//
// Any number of Set calls before the next PollAndClear collapse into one
// observed notification. The zero value is not usable; call New.
type Latch struct {
	flag atomic.Bool
	wake chan struct{}
	sets atomic.Uint64
}

// New creates a cleared latch.
func New() *Latch {
	return &Latch{wake: make(chan struct{}, 1)}
}

// Set raises the flag. It never blocks and is safe to call redundantly and
// concurrently.
func (l *Latch) Set() {
	l.sets.Add(1)
	l.flag.Store(true)
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// PollAndClear reports whether the flag was raised since the previous call,
// clearing it atomically.
func (l *Latch) PollAndClear() bool {
	return l.flag.Swap(false)
}

// Pending reports whether the flag is raised without clearing it.
func (l *Latch) Pending() bool {
	return l.flag.Load()
}

// C returns a channel that receives after Set. A receive is only a hint to
// call PollAndClear: the flag may already have been consumed by a poll
// elsewhere in the consumer's loop.
func (l *Latch) C() <-chan struct{} {
	return l.wake
}

// Sets returns the number of Set calls ever made, including coalesced ones.
func (l *Latch) Sets() uint64 {
	return l.sets.Load()
}
