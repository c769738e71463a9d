// Package speech is the platform speech capability the narration engine
// drives: queue an utterance, hear about its start and its end, cancel
// everything.
package speech

import (
	"context"
	"errors"

	"authflow/pkg/voice"
)

var (
	// ErrUnsupported means no speech backend is usable on this host.
	ErrUnsupported = errors.New("speech: capability unavailable")
	// ErrInterrupted is delivered to utterances removed by CancelAll.
	ErrInterrupted = errors.New("speech: interrupted")
	// ErrNoVoice means the backend offers no voices at all.
	ErrNoVoice = errors.New("speech: no voice available")
)

// Utterance is one line queued for speaking.
type Utterance struct {
	Text   string
	Rate   float64
	Pitch  float64
	Volume float64
	// Voice is nil when the backend should use its default.
	Voice *voice.Descriptor
}

// Handlers receive lifecycle notifications for one utterance. They may be
// called from any goroutine. Exactly one of OnEnd and OnError is called;
// OnStart precedes it only if audio actually began.
type Handlers struct {
	OnStart func()
	OnEnd   func()
	OnError func(error)
}

func (h Handlers) start() {
	if h.OnStart != nil {
		h.OnStart()
	}
}

func (h Handlers) end() {
	if h.OnEnd != nil {
		h.OnEnd()
	}
}

func (h Handlers) fail(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

// Capability is a speech backend with browser-like queue semantics.
type Capability interface {
	// Speak queues u behind any utterances already queued.
	Speak(u Utterance, h Handlers)
	// CancelAll stops the current utterance and drops the queue. Every
	// affected utterance receives OnError(ErrInterrupted).
	CancelAll()
	// Voices returns the voices known right now; possibly empty.
	Voices() []voice.Descriptor
	// OnVoicesChanged registers fn to run when the voice list changes.
	OnVoicesChanged(fn func())
	// Probe checks the backend is usable, returning ErrUnsupported if not.
	Probe(ctx context.Context) error
}
