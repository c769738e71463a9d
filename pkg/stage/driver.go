package stage

import (
	"log/slog"
	"time"

	"authflow/pkg/logging"
	"authflow/pkg/loop"
	"authflow/pkg/narration"
)

// Tick advances State at a fixed period until it reports done.
type Tick struct {
	Every   time.Duration
	Advance func(*State) (done bool)
}

// Step is one entry of a stage script. Its parts run in this order: set
// Phase, apply Do, request Say, run Tick, wait for the line (unless
// Background) and the tick, then Wait. A background line is joined before
// the next line is requested, so lines never overlap.
type Step struct {
	Phase      Phase
	Do         func(*State)
	Say        string
	Background bool
	Tick       *Tick
	Wait       time.Duration
}

// Script is a named, ordered list of steps with the state they start from.
type Script struct {
	Name    string
	Initial State
	Steps   []Step
}

// Driver executes a Script on a loop. All methods must be called on the loop.
type Driver struct {
	script   Script
	l        loop.Loop
	n        Narrator
	onChange func(State)

	state      State
	onComplete func()
	mounted    bool
	unmounted  bool
	completed  bool

	timer    loop.Timer
	tick     loop.Timer
	inFlight int

	bgPending bool
	bgWaiter  func()
}

// NewDriver creates an unmounted driver. onChange, if set, runs after every
// state change.
func NewDriver(l loop.Loop, n Narrator, script Script, onChange func(State)) *Driver {
	return &Driver{script: script, l: l, n: n, onChange: onChange, state: script.Initial}
}

// Name returns the script name.
func (d *Driver) Name() string { return d.script.Name }

// State returns the current state.
func (d *Driver) State() State { return d.state }

// Mount starts the script. onComplete runs at most once, after the last
// step, and never after Unmount.
func (d *Driver) Mount(onComplete func()) {
	if d.mounted {
		return
	}
	d.mounted = true
	d.onComplete = onComplete
	d.state.Phase = PhaseIdle
	d.emit()
	d.runStep(0)
}

// Unmount stops every timer and cancels narration the stage started.
// Idempotent.
func (d *Driver) Unmount() {
	if d.unmounted {
		return
	}
	d.unmounted = true
	d.onComplete = nil
	d.bgWaiter = nil
	if d.timer != nil {
		d.timer.Stop()
	}
	if d.tick != nil {
		d.tick.Stop()
	}
	if d.inFlight > 0 {
		d.n.Cancel()
		d.inFlight = 0
	}
	if !d.completed {
		unmountedEarly.WithLabelValues(d.script.Name).Inc()
		slog.Debug("Stage: unmounted before completion", "stage", d.script.Name, "phase", d.state.Phase)
	}
}

func (d *Driver) live() bool {
	return d.mounted && !d.unmounted && !d.completed
}

func (d *Driver) emit() {
	if d.onChange != nil {
		d.onChange(d.state)
	}
}

func (d *Driver) runStep(i int) {
	if !d.live() {
		return
	}
	if i >= len(d.script.Steps) {
		d.complete()
		return
	}
	st := d.script.Steps[i]
	if st.Phase != "" {
		d.state.Phase = st.Phase
	}
	if st.Do != nil {
		st.Do(&d.state)
	}
	if st.Phase != "" || st.Do != nil {
		d.emit()
	}

	// pending starts at one so parts finishing synchronously cannot
	// advance before every part has been started.
	pending := 1
	done := func() {
		pending--
		if pending == 0 {
			d.wait(st.Wait, func() { d.runStep(i + 1) })
		}
	}
	if st.Say != "" {
		if st.Background {
			d.sayBackground(st.Say)
		} else {
			pending++
			d.say(st.Say, done)
		}
	}
	if st.Tick != nil {
		pending++
		d.startTick(st.Tick, done)
	}
	done()
}

func (d *Driver) wait(delay time.Duration, then func()) {
	if delay <= 0 {
		then()
		return
	}
	d.timer = d.l.AfterFunc(delay, func() {
		if d.live() {
			then()
		}
	})
}

func (d *Driver) startTick(t *Tick, done func()) {
	d.tick = d.l.Every(t.Every, func() {
		if !d.live() {
			return
		}
		finished := t.Advance(&d.state)
		logging.TraceDefault("Stage: tick", "stage", d.script.Name, "countdown", d.state.Countdown, "progress", d.state.Progress)
		if finished {
			d.tick.Stop()
		}
		d.emit()
		if finished {
			done()
		}
	})
}

// say requests a line and calls then when it ends. An unsupported narrator
// completes the line on the next loop turn so the stage keeps moving.
func (d *Driver) say(text string, then func()) {
	if d.bgPending {
		d.bgWaiter = func() { d.say(text, then) }
		return
	}
	d.state.Line = text
	d.emit()
	d.inFlight++
	finished := func() {
		if !d.live() {
			return
		}
		d.inFlight--
		then()
	}
	d.n.Speak(text, narration.Options{OnComplete: finished})
	if !d.n.IsSupported() {
		d.l.Post(finished)
	}
}

func (d *Driver) sayBackground(text string) {
	d.say(text, func() {
		d.bgPending = false
		if w := d.bgWaiter; w != nil {
			d.bgWaiter = nil
			w()
		}
	})
	d.bgPending = true
}

func (d *Driver) complete() {
	d.state.Phase = PhaseDone
	d.emit()
	d.completed = true
	completions.WithLabelValues(d.script.Name).Inc()
	slog.Info("Stage: complete", "stage", d.script.Name)

	cb := d.onComplete
	d.onComplete = nil
	if cb != nil {
		cb()
	}
}
