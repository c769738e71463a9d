package flow

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"authflow/pkg/loop"
	"authflow/pkg/stage"
	"authflow/pkg/store"
)

// Options configure a Controller.
type Options struct {
	RedirectURL string
	Greeting    Greeting
	// Runs, if set, records each run's progress.
	Runs store.RunStore
}

// Controller is the flow state machine. Start, Advance, Press, Stop and
// NoteLine must run on the loop; Snapshot and Subscribe are safe anywhere.
type Controller struct {
	l       loop.Loop
	factory Factory
	opts    Options
	rec     *recorder

	// loop-owned
	run      *store.Run
	current  Stage
	comp     Component
	mountGen uint64
	running  bool

	mu     sync.Mutex
	snap   Snapshot
	subs   map[int]chan Event
	nextID int
}

// NewController creates an idle controller. Call Close when done with it.
func NewController(l loop.Loop, f Factory, opts Options) *Controller {
	c := &Controller{
		l:       l,
		factory: f,
		opts:    opts,
		current: Welcome,
		subs:    make(map[int]chan Event),
		snap:    Snapshot{Stage: Welcome, Greeting: opts.Greeting},
	}
	if opts.Runs != nil {
		c.rec = newRecorder(opts.Runs)
	}
	return c
}

// Close waits for queued run records to be written. It is safe from any
// goroutine; records saved after Close are dropped.
func (c *Controller) Close() {
	if c.rec != nil {
		c.rec.close()
	}
}

// Start begins a new run at Welcome, stopping any run in progress.
func (c *Controller) Start() string {
	if c.running {
		c.Stop()
	}
	c.run = &store.Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		LastStage: string(Welcome),
		Outcome:   store.OutcomeRunning,
	}
	c.running = true
	c.updateSnap(func(s *Snapshot) {
		*s = Snapshot{RunID: c.run.ID, Running: true, Greeting: c.opts.Greeting}
	})
	runsTotal.WithLabelValues("started").Inc()
	slog.Info("Flow: run started", "run", c.run.ID)
	c.saveRun()
	c.mount(Welcome)
	return c.run.ID
}

// Advance moves to the next stage. From Complete, or with no run, it is a
// no-op.
func (c *Controller) Advance() {
	if !c.running {
		return
	}
	next, ok := c.current.Next()
	if !ok {
		return
	}
	c.unmount()
	c.mount(next)
}

// Press forwards a user press to the mounted gate. It reports whether the
// press completed the stage.
func (c *Controller) Press() bool {
	if !c.running {
		return false
	}
	p, ok := c.comp.(Pressable)
	if !ok {
		return false
	}
	return p.Press()
}

// Stop unmounts the current stage without advancing.
func (c *Controller) Stop() {
	if !c.running {
		return
	}
	c.unmount()
	c.running = false
	if c.run.Outcome == store.OutcomeRunning {
		c.finishRun(store.OutcomeAborted)
	}
	c.updateSnap(func(s *Snapshot) { s.Running = false })
	c.publish(Event{Type: EventStopped, Stage: c.current})
	slog.Info("Flow: run stopped", "run", c.run.ID, "stage", c.current)
}

// SetRedirectURL changes the destination for later redirects.
func (c *Controller) SetRedirectURL(u string) {
	c.opts.RedirectURL = u
}

// Current returns the current stage.
func (c *Controller) Current() Stage { return c.current }

// NoteLine mirrors a narration line to subscribers. Wire it to the
// narration engine's line observer.
func (c *Controller) NoteLine(text string) {
	if !c.running {
		return
	}
	c.run.Lines++
	c.updateSnap(func(s *Snapshot) { s.Line = text })
	c.publish(Event{Type: EventLine, Stage: c.current, Line: text})
}

func (c *Controller) mount(s Stage) {
	c.current = s
	c.mountGen++
	gen := c.mountGen

	comp := c.factory(s, func(st stage.State) { c.stateChanged(gen, st) })
	c.comp = comp
	if c.run != nil {
		c.run.LastStage = string(s)
	}
	transitions.WithLabelValues(string(s)).Inc()

	var label string
	if p, ok := comp.(Pressable); ok {
		label = p.Label()
	}
	var st *stage.State
	if sf, ok := comp.(Stateful); ok {
		v := sf.State()
		st = &v
	}
	c.updateSnap(func(snap *Snapshot) {
		snap.Stage = s
		snap.Index = s.Index()
		snap.State = st
		snap.Label = label
		snap.Line = ""
	})
	c.publish(Event{Type: EventStage, Stage: s, State: st, Label: label})
	slog.Info("Flow: stage mounted", "stage", s, "run", c.runID())
	c.saveRun()

	comp.Mount(func() { c.stageComplete(gen) })
}

func (c *Controller) unmount() {
	if c.comp == nil {
		return
	}
	// Bumping the generation first makes the old stage's callbacks stale.
	c.mountGen++
	c.comp.Unmount()
	c.comp = nil
}

func (c *Controller) stageComplete(gen uint64) {
	if gen != c.mountGen || !c.running {
		slog.Debug("Flow: stale completion ignored", "stage", c.current)
		return
	}
	if c.current == Complete {
		c.redirect()
		return
	}
	c.Advance()
}

// redirect ends the run; the narrator is free again once the portal opens.
func (c *Controller) redirect() {
	c.unmount()
	c.running = false
	c.finishRun(store.OutcomeRedirected)
	c.updateSnap(func(s *Snapshot) {
		s.Redirect = c.opts.RedirectURL
		s.Running = false
	})
	c.publish(Event{Type: EventRedirect, Stage: Complete, URL: c.opts.RedirectURL})
	slog.Info("Flow: redirecting", "url", c.opts.RedirectURL, "run", c.runID())
}

func (c *Controller) stateChanged(gen uint64, st stage.State) {
	if gen != c.mountGen {
		return
	}
	c.updateSnap(func(s *Snapshot) { s.State = &st })
	c.publish(Event{Type: EventState, Stage: c.current, State: &st})
}

func (c *Controller) finishRun(outcome string) {
	if c.run == nil {
		return
	}
	now := time.Now()
	c.run.FinishedAt = &now
	c.run.Outcome = outcome
	runsTotal.WithLabelValues(outcome).Inc()
	c.saveRun()
}

func (c *Controller) saveRun() {
	if c.rec == nil || c.run == nil {
		return
	}
	r := *c.run
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		r.FinishedAt = &t
	}
	c.rec.save(r)
}

func (c *Controller) runID() string {
	if c.run == nil {
		return ""
	}
	return c.run.ID
}

func (c *Controller) updateSnap(fn func(*Snapshot)) {
	c.mu.Lock()
	fn(&c.snap)
	c.mu.Unlock()
}

// Snapshot returns the latest state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.snap
	if s.State != nil {
		st := *s.State
		s.State = &st
	}
	return s
}

// Subscribe returns a channel of events and a function that ends the
// subscription. Slow subscribers miss events rather than block the loop.
func (c *Controller) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, max(buffer, 1))
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

func (c *Controller) publish(ev Event) {
	ev.RunID = c.runID()
	ev.At = time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			droppedEvents.Inc()
		}
	}
}
