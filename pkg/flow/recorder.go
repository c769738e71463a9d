package flow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"authflow/pkg/store"
)

const saveTimeout = 2 * time.Second

// recorder writes run records on its own goroutine so a slow store never
// holds up the loop. Pending writes for the same run collapse to the latest.
type recorder struct {
	runs store.RunStore

	mu      sync.Mutex
	pending []store.Run
	closed  bool

	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}
}

func newRecorder(runs store.RunStore) *recorder {
	r := &recorder{
		runs:    runs,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go r.work()
	return r
}

// save queues a copy of run. It never blocks.
func (r *recorder) save(run store.Run) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		slog.Warn("Flow: run not recorded after close", "run", run.ID)
		return
	}
	replaced := false
	for i := range r.pending {
		if r.pending[i].ID == run.ID {
			r.pending[i] = run
			replaced = true
			break
		}
	}
	if !replaced {
		r.pending = append(r.pending, run)
	}
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *recorder) work() {
	defer close(r.stopped)
	for {
		select {
		case <-r.wake:
			r.flush()
		case <-r.stop:
			r.flush()
			return
		}
	}
}

func (r *recorder) flush() {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	for i := range batch {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		if err := r.runs.SaveRun(ctx, &batch[i]); err != nil {
			slog.Warn("Flow: failed to record run", "run", batch[i].ID, "error", err)
		}
		cancel()
	}
}

// close writes what is pending and stops the goroutine.
func (r *recorder) close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.stopped
		return
	}
	r.closed = true
	r.mu.Unlock()
	close(r.stop)
	<-r.stopped
}
