package loop

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Runner is the production Loop backed by wall-clock timers.
type Runner struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
}

// NewRunner creates a Runner. Call Run to start executing tasks.
func NewRunner() *Runner {
	return &Runner{wake: make(chan struct{}, 1)}
}

// Post implements Loop. Tasks posted after Run returned are dropped.
func (r *Runner) Post(fn func()) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.queue = append(r.queue, fn)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run executes queued tasks until ctx is canceled.
func (r *Runner) Run(ctx context.Context) {
	slog.Debug("Loop: started")
	for {
		r.mu.Lock()
		batch := r.queue
		r.queue = nil
		r.mu.Unlock()

		for _, fn := range batch {
			r.exec(fn)
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			r.mu.Lock()
			r.stopped = true
			r.queue = nil
			r.mu.Unlock()
			slog.Debug("Loop: stopped")
			return
		case <-r.wake:
		}
	}
}

func (r *Runner) exec(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Loop: task panicked", "panic", rec)
		}
	}()
	fn()
}

// AfterFunc implements Loop.
func (r *Runner) AfterFunc(d time.Duration, fn func()) Timer {
	return r.schedule(d, 0, fn)
}

// Every implements Loop.
func (r *Runner) Every(d time.Duration, fn func()) Timer {
	if d <= 0 {
		d = time.Millisecond
	}
	return r.schedule(d, d, fn)
}

func (r *Runner) schedule(d, period time.Duration, fn func()) Timer {
	t := &runnerTimer{runner: r, period: period, fn: fn}
	t.mu.Lock()
	t.t = time.AfterFunc(d, t.expire)
	t.mu.Unlock()
	return t
}

type runnerTimer struct {
	runner  *Runner
	period  time.Duration
	fn      func()
	stopped atomic.Bool

	mu sync.Mutex
	t  *time.Timer
}

// expire runs on the time package's goroutine and hands off to the loop.
func (t *runnerTimer) expire() {
	t.runner.Post(t.fire)
}

func (t *runnerTimer) fire() {
	if t.period == 0 {
		if !t.stopped.CompareAndSwap(false, true) {
			return
		}
		t.fn()
		return
	}

	if t.stopped.Load() {
		return
	}
	t.fn()
	if t.stopped.Load() {
		return
	}
	t.mu.Lock()
	t.t.Reset(t.period)
	t.mu.Unlock()
}

func (t *runnerTimer) Stop() bool {
	if !t.stopped.CompareAndSwap(false, true) {
		return false
	}
	t.mu.Lock()
	t.t.Stop()
	t.mu.Unlock()
	return true
}
