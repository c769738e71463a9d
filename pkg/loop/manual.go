package loop

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Loop driven by virtual time. Nothing runs until Drain or
// Advance is called, which makes timer and callback interleavings
// reproducible in tests and simulations.
type Manual struct {
	mu     sync.Mutex
	now    time.Duration
	seq    uint64
	timers []*manualTimer
	queue  []func()
}

// NewManual returns a Manual loop at virtual time zero.
func NewManual() *Manual {
	return &Manual{}
}

// Now returns the elapsed virtual time.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Post implements Loop.
func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	m.mu.Unlock()
}

// AfterFunc implements Loop.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	return m.add(d, 0, fn)
}

// Every implements Loop.
func (m *Manual) Every(d time.Duration, fn func()) Timer {
	if d <= 0 {
		d = time.Millisecond
	}
	return m.add(d, d, fn)
}

func (m *Manual) add(d, period time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTimer{m: m, at: m.now + d, period: period, seq: m.seq, fn: fn, active: true}
	m.timers = append(m.timers, t)
	return t
}

// Pending returns the number of timers that can still fire.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if t.active {
			n++
		}
	}
	return n
}

// Drain runs posted tasks, including tasks they post, until none remain.
func (m *Manual) Drain() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		fn := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		fn()
	}
}

// Advance moves virtual time forward by d, firing due timers in deadline
// order and draining posted tasks after each one.
func (m *Manual) Advance(d time.Duration) {
	m.Drain()

	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.nextDueLocked(target)
		if next == nil {
			m.now = target
			m.compactLocked()
			m.mu.Unlock()
			m.Drain()
			return
		}
		m.now = next.at
		if next.period > 0 {
			next.at += next.period
		} else {
			next.active = false
		}
		fn := next.fn
		m.mu.Unlock()

		fn()
		m.Drain()
	}
}

func (m *Manual) nextDueLocked(target time.Duration) *manualTimer {
	var due []*manualTimer
	for _, t := range m.timers {
		if t.active && t.at <= target {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at != due[j].at {
			return due[i].at < due[j].at
		}
		return due[i].seq < due[j].seq
	})
	return due[0]
}

func (m *Manual) compactLocked() {
	live := m.timers[:0]
	for _, t := range m.timers {
		if t.active {
			live = append(live, t)
		}
	}
	m.timers = live
}

type manualTimer struct {
	m      *Manual
	at     time.Duration
	period time.Duration
	seq    uint64
	fn     func()
	active bool
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	was := t.active
	t.active = false
	return was
}
