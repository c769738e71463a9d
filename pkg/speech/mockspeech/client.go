// Package mockspeech provides a scriptable speech.Capability for tests and
// headless demos.
package mockspeech

import (
	"context"
	"sync"
	"time"

	"authflow/pkg/loop"
	"authflow/pkg/speech"
	"authflow/pkg/voice"
)

// Call is one Speak invocation.
type Call struct {
	Utterance speech.Utterance
	Handlers  speech.Handlers
	Started   bool
	Done      bool
	Err       error
	timer     loop.Timer
}

// Client implements speech.Capability. Utterances stay pending until the
// test finishes or fails them, or until the auto-finish delay elapses on
// the loop.
type Client struct {
	mu        sync.Mutex
	l         loop.Loop
	auto      time.Duration
	calls     []*Call
	pending   []*Call
	voices    []voice.Descriptor
	listeners []func()
	cancels   int

	// ProbeErr is returned by Probe.
	ProbeErr error
}

// NewClient returns a Client with the given voices.
func NewClient(l loop.Loop, voices ...voice.Descriptor) *Client {
	return &Client{l: l, voices: voices}
}

// SetAutoFinish makes every later utterance start immediately and end d
// later on the loop. Zero disables it.
func (c *Client) SetAutoFinish(d time.Duration) {
	c.mu.Lock()
	c.auto = d
	c.mu.Unlock()
}

// Speak implements speech.Capability.
func (c *Client) Speak(u speech.Utterance, h speech.Handlers) {
	call := &Call{Utterance: u, Handlers: h}
	c.mu.Lock()
	c.calls = append(c.calls, call)
	c.pending = append(c.pending, call)
	auto := c.auto
	c.mu.Unlock()

	if auto > 0 && c.l != nil {
		call.timer = c.l.AfterFunc(auto, func() { c.finish(call, nil) })
		c.start(call)
	}
}

// CancelAll implements speech.Capability.
func (c *Client) CancelAll() {
	c.mu.Lock()
	dropped := c.pending
	c.pending = nil
	c.cancels++
	c.mu.Unlock()

	for _, call := range dropped {
		if call.timer != nil {
			call.timer.Stop()
		}
		call.Done = true
		call.Err = speech.ErrInterrupted
		if call.Handlers.OnError != nil {
			call.Handlers.OnError(speech.ErrInterrupted)
		}
	}
}

// Voices implements speech.Capability.
func (c *Client) Voices() []voice.Descriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]voice.Descriptor(nil), c.voices...)
}

// OnVoicesChanged implements speech.Capability.
func (c *Client) OnVoicesChanged(fn func()) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Probe implements speech.Capability.
func (c *Client) Probe(ctx context.Context) error {
	return c.ProbeErr
}

// SetVoices replaces the voice list and notifies listeners.
func (c *Client) SetVoices(vs ...voice.Descriptor) {
	c.mu.Lock()
	c.voices = vs
	listeners := append([]func(){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// Finish starts (if needed) and ends the oldest pending utterance.
// It reports false when nothing is pending.
func (c *Client) Finish() bool {
	call := c.oldest()
	if call == nil {
		return false
	}
	c.start(call)
	c.finish(call, nil)
	return true
}

// Fail ends the oldest pending utterance with err.
func (c *Client) Fail(err error) bool {
	call := c.oldest()
	if call == nil {
		return false
	}
	c.finish(call, err)
	return true
}

// Calls returns every utterance seen so far.
func (c *Client) Calls() []*Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Call(nil), c.calls...)
}

// Texts returns the text of every utterance seen so far.
func (c *Client) Texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	for i, call := range c.calls {
		out[i] = call.Utterance.Text
	}
	return out
}

// Pending returns the number of utterances not yet ended.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Cancels returns how many times CancelAll was called.
func (c *Client) Cancels() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancels
}

func (c *Client) oldest() *Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return nil
	}
	return c.pending[0]
}

func (c *Client) start(call *Call) {
	if call.Started {
		return
	}
	call.Started = true
	if call.Handlers.OnStart != nil {
		call.Handlers.OnStart()
	}
}

func (c *Client) finish(call *Call, err error) {
	c.mu.Lock()
	idx := -1
	for i, p := range c.pending {
		if p == call {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return
	}
	c.pending = append(c.pending[:idx], c.pending[idx+1:]...)
	c.mu.Unlock()

	if call.timer != nil {
		call.timer.Stop()
	}
	call.Done = true
	call.Err = err
	if err != nil {
		if call.Handlers.OnError != nil {
			call.Handlers.OnError(err)
		}
		return
	}
	if call.Handlers.OnEnd != nil {
		call.Handlers.OnEnd()
	}
}
