// Package narration turns a speech capability into a single-flight,
// cancelable "say this, then call me back" primitive.
//
// Speak, Cancel and Shutdown must be called on the engine's loop. Capability
// callbacks may arrive on any goroutine; they are posted back to the loop
// and dropped there unless they belong to the current session.
package narration

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"authflow/pkg/loop"
	"authflow/pkg/speech"
	"authflow/pkg/voice"
)

// Defaults for utterance prosody.
const (
	DefaultRate   = 1.1
	DefaultPitch  = 1.0
	DefaultVolume = 1.0
)

// ErrWatchdog is reported to the log when a session outlives the watchdog.
var ErrWatchdog = errors.New("narration: watchdog expired")

// Config tunes an Engine.
type Config struct {
	Rate   float64
	Pitch  float64
	Volume float64
	// Voice is requested when a line names none.
	Voice string
	// Watchdog ends a session that never reports back. Zero disables it.
	Watchdog time.Duration
	// ProbeTimeout bounds the first-use capability probe.
	ProbeTimeout time.Duration
}

// Options customize one line.
type Options struct {
	Rate   float64
	Pitch  float64
	Volume float64
	Voice  string
	// OnComplete runs on the loop when the line ends or fails. It never
	// runs for a line superseded by a later Speak or by Cancel.
	OnComplete func()
}

type session struct {
	id         uint64
	text       string
	voice      string
	onComplete func()
	started    time.Time
	watchdog   loop.Timer
}

// Status is a point-in-time view for the API.
type Status struct {
	Supported bool   `json:"supported"`
	Speaking  bool   `json:"speaking"`
	Line      string `json:"line,omitempty"`
	Voice     string `json:"voice,omitempty"`
	Sessions  uint64 `json:"sessions"`
}

// Engine owns the one in-flight narration session.
type Engine struct {
	l   loop.Loop
	cap speech.Capability
	cfg Config

	initOnce  sync.Once
	supported atomic.Bool
	speaking  atomic.Bool

	// loop-owned
	gen       uint64
	cur       *session
	shut      bool
	observers []func(string)

	mu     sync.Mutex
	status Status
}

// New creates an engine. The capability is probed on first use.
func New(l loop.Loop, c speech.Capability, cfg Config) *Engine {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	return &Engine{l: l, cap: c, cfg: cfg}
}

// Init probes the capability. Later calls return the first result.
// Speak calls it implicitly.
func (e *Engine) Init(ctx context.Context) bool {
	e.initOnce.Do(func() {
		if e.cap == nil {
			slog.Warn("Narration: no speech capability configured")
			return
		}
		ctx, cancel := context.WithTimeout(ctx, e.cfg.ProbeTimeout)
		defer cancel()
		if err := e.cap.Probe(ctx); err != nil {
			slog.Warn("Narration: speech capability unavailable", "error", err)
			return
		}
		e.supported.Store(true)
		e.cap.OnVoicesChanged(func() {
			slog.Debug("Narration: voice set changed", "count", len(e.cap.Voices()))
		})
	})
	e.setStatus(func(s *Status) { s.Supported = e.supported.Load() })
	return e.supported.Load()
}

// IsSupported reports the probe result. It is false before the first probe.
func (e *Engine) IsSupported() bool { return e.supported.Load() }

// IsSpeaking is true exactly while a session is active.
func (e *Engine) IsSpeaking() bool { return e.speaking.Load() }

// Status returns a snapshot safe to read from any goroutine.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// OnLine registers fn to run on the loop with each line as it is requested.
func (e *Engine) OnLine(fn func(text string)) {
	e.observers = append(e.observers, fn)
}

// Speak cancels any in-flight session and starts a new one. Empty text, an
// unsupported capability or a shut-down engine make it a logged no-op.
func (e *Engine) Speak(text string, opts Options) {
	if e.shut {
		slog.Debug("Narration: engine shut down, dropping line", "text", text)
		return
	}
	if text == "" {
		slog.Warn("Narration: empty line ignored")
		return
	}
	if !e.Init(context.Background()) {
		slog.Debug("Narration: unsupported, dropping line", "text", text)
		return
	}

	e.endCurrent(outcomeSuperseded)
	e.cap.CancelAll()

	requested := opts.Voice
	if requested == "" {
		requested = e.cfg.Voice
	}
	utt := speech.Utterance{
		Text:   text,
		Rate:   bounded(opts.Rate, e.cfg.Rate, DefaultRate, 0.1, 10),
		Pitch:  bounded(opts.Pitch, e.cfg.Pitch, DefaultPitch, 0, 2),
		Volume: bounded(opts.Volume, e.cfg.Volume, DefaultVolume, 0, 1),
	}
	if v, ok := voice.Resolve(e.cap.Voices(), requested); ok {
		utt.Voice = &v
	} else {
		slog.Debug("Narration: using backend default voice", "reason", speech.ErrNoVoice)
	}

	e.gen++
	s := &session{id: e.gen, text: text, onComplete: opts.OnComplete, started: time.Now()}
	if utt.Voice != nil {
		s.voice = utt.Voice.Name
	}
	e.cur = s
	e.speaking.Store(true)
	e.setStatus(func(st *Status) {
		st.Speaking = true
		st.Line = text
		st.Voice = s.voice
		st.Sessions = s.id
	})

	if e.cfg.Watchdog > 0 {
		id := s.id
		s.watchdog = e.l.AfterFunc(e.cfg.Watchdog, func() { e.expire(id) })
	}
	for _, fn := range e.observers {
		fn(text)
	}

	id := s.id
	e.cap.Speak(utt, speech.Handlers{
		OnStart: func() {
			e.l.Post(func() {
				if e.isCurrent(id) {
					slog.Debug("Narration: speaking", "text", text, "voice", s.voice)
				}
			})
		},
		OnEnd:   func() { e.l.Post(func() { e.finish(id, nil) }) },
		OnError: func(err error) { e.l.Post(func() { e.finish(id, err) }) },
	})
}

// Cancel ends any in-flight session without its callback. Idempotent.
func (e *Engine) Cancel() {
	e.endCurrent(outcomeCanceled)
	if e.supported.Load() {
		e.cap.CancelAll()
	}
}

// Configure replaces the default prosody and voice for later lines. The
// line in flight keeps its settings.
func (e *Engine) Configure(cfg Config) {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = e.cfg.ProbeTimeout
	}
	e.cfg = cfg
	slog.Info("Narration: settings updated", "rate", cfg.Rate, "pitch", cfg.Pitch, "volume", cfg.Volume, "voice", cfg.Voice)
}

// Shutdown cancels narration and turns later Speak calls into no-ops.
func (e *Engine) Shutdown() {
	e.Cancel()
	e.shut = true
	slog.Info("Narration: engine shut down")
}

func (e *Engine) isCurrent(id uint64) bool {
	return e.cur != nil && e.cur.id == id
}

// endCurrent drops the current session, if any, so its callbacks go stale.
func (e *Engine) endCurrent(outcome string) {
	if e.cur != nil {
		if e.cur.watchdog != nil {
			e.cur.watchdog.Stop()
		}
		observe(outcome, e.cur.started)
		e.cur = nil
	}
	e.idle()
}

func (e *Engine) idle() {
	e.speaking.Store(false)
	e.setStatus(func(st *Status) {
		st.Speaking = false
		st.Line = ""
	})
}

func (e *Engine) finish(id uint64, err error) {
	if !e.isCurrent(id) {
		staleCallbacks.Inc()
		return
	}
	s := e.cur
	if s.watchdog != nil {
		s.watchdog.Stop()
	}
	e.cur = nil
	e.idle()

	outcome := outcomeCompleted
	switch {
	case errors.Is(err, ErrWatchdog):
		outcome = outcomeTimeout
		slog.Warn("Narration: line timed out, continuing", "text", s.text)
	case err != nil:
		outcome = outcomeFailed
		slog.Warn("Narration: synthesis failed, continuing", "text", s.text, "error", err)
	}
	observe(outcome, s.started)

	if s.onComplete != nil {
		s.onComplete()
	}
}

func (e *Engine) expire(id uint64) {
	if !e.isCurrent(id) {
		return
	}
	e.cap.CancelAll()
	e.finish(id, ErrWatchdog)
}

func (e *Engine) setStatus(fn func(*Status)) {
	e.mu.Lock()
	fn(&e.status)
	e.mu.Unlock()
}

// bounded picks the first positive of v and fallback, else def, clamped to
// [lo, hi].
func bounded(v, fallback, def, lo, hi float64) float64 {
	switch {
	case v > 0:
	case fallback > 0:
		v = fallback
	default:
		v = def
	}
	return max(lo, min(hi, v))
}
