// Package loop provides the single-threaded scheduler that narration,
// stage and flow callbacks run on.
//
// Every callback handed to a Loop executes on one goroutine, one at a time,
// in the order it became ready. A Timer stopped on the loop never fires,
// even if its expiry was already queued.
package loop

import (
	"context"
	"time"
)

// Loop schedules work onto a single executor.
type Loop interface {
	// Post queues fn to run on the loop after everything already queued.
	Post(fn func())
	// AfterFunc runs fn on the loop once d has elapsed.
	AfterFunc(d time.Duration, fn func()) Timer
	// Every runs fn on the loop every d until the returned Timer is stopped.
	Every(d time.Duration, fn func()) Timer
}

// Timer is a handle to a pending AfterFunc or Every callback.
type Timer interface {
	// Stop prevents any further firing. It reports whether the timer was
	// still active.
	Stop() bool
}

// Await posts fn to l and blocks until it has run or ctx is done.
// It must not be called from the loop itself.
func Await(ctx context.Context, l Loop, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
