package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"authflow/pkg/audio"
	"authflow/pkg/tts"
	"authflow/pkg/voice"
)

// ClipCache stores synthesized clips between runs.
type ClipCache interface {
	Load(ctx context.Context, key, path string) (string, bool)
	Save(ctx context.Context, key, format, path string) error
}

// Options wires a Synth.
type Options struct {
	Provider tts.Provider
	Player   audio.Player
	Catalog  *voice.Catalog
	// Cache is optional.
	Cache   ClipCache
	TempDir string
	// KeyFunc derives cache keys; required when Cache is set.
	KeyFunc func(provider string, req tts.Request) string
}

type job struct {
	u      Utterance
	h      Handlers
	ctx    context.Context
	cancel context.CancelFunc
}

// Synth implements Capability by synthesizing each utterance through a TTS
// provider and playing the result. Utterances are handled one at a time in
// queue order on a worker goroutine.
type Synth struct {
	opts Options

	mu      sync.Mutex
	queue   []*job
	current *job
	wake    chan struct{}
	closed  bool
	done    chan struct{}
	start   sync.Once
}

// NewSynth creates a speech capability over a TTS provider and a player.
func NewSynth(opts Options) *Synth {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	return &Synth{
		opts: opts,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Speak implements Capability.
func (s *Synth) Speak(u Utterance, h Handlers) {
	s.start.Do(func() { go s.worker() })

	ctx, cancel := context.WithCancel(context.Background())
	j := &job{u: u, h: h, ctx: ctx, cancel: cancel}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		h.fail(ErrUnsupported)
		return
	}
	s.queue = append(s.queue, j)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// CancelAll implements Capability.
func (s *Synth) CancelAll() {
	s.mu.Lock()
	dropped := s.queue
	s.queue = nil
	// Stopping under the lock keeps a newer utterance's playback safe.
	if s.current != nil {
		s.current.cancel()
		s.opts.Player.Stop()
	}
	s.mu.Unlock()

	for _, j := range dropped {
		j.cancel()
		j.h.fail(ErrInterrupted)
	}
}

// Voices implements Capability.
func (s *Synth) Voices() []voice.Descriptor {
	if s.opts.Catalog == nil {
		return nil
	}
	return s.opts.Catalog.Snapshot()
}

// OnVoicesChanged implements Capability.
func (s *Synth) OnVoicesChanged(fn func()) {
	if s.opts.Catalog != nil {
		s.opts.Catalog.OnChange(func([]voice.Descriptor) { fn() })
	}
}

// Probe implements Capability. It loads the voice catalog and verifies the
// temp directory is writable.
func (s *Synth) Probe(ctx context.Context) error {
	if s.opts.Provider == nil || s.opts.Player == nil {
		return ErrUnsupported
	}
	if err := os.MkdirAll(s.opts.TempDir, 0o755); err != nil {
		return fmt.Errorf("%w: temp dir: %v", ErrUnsupported, err)
	}
	if s.opts.Catalog != nil {
		if _, err := s.opts.Catalog.Refresh(ctx); err != nil {
			// Voices may still arrive later; an empty catalog is not fatal.
			slog.Warn("Speech: voice catalog unavailable", "provider", s.opts.Provider.Name(), "error", err)
		}
	}
	return nil
}

// Close cancels everything and stops the worker.
func (s *Synth) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.CancelAll()
	close(s.done)
}

func (s *Synth) worker() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		j := s.queue[0]
		s.queue = s.queue[1:]
		s.current = j
		s.mu.Unlock()

		err := s.run(j)
		interrupted := j.ctx.Err() != nil

		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()
		j.cancel()

		if err != nil {
			if interrupted {
				err = ErrInterrupted
			}
			j.h.fail(err)
			continue
		}
		j.h.end()
	}
}

func (s *Synth) run(j *job) error {
	req := tts.Request{
		Text:   j.u.Text,
		Rate:   j.u.Rate,
		Pitch:  j.u.Pitch,
		Volume: j.u.Volume,
	}
	if j.u.Voice != nil {
		req.Voice = j.u.Voice.ID
		req.Locale = j.u.Voice.Locale
	}

	path := filepath.Join(s.opts.TempDir, "utt-"+uuid.NewString()+".clip")
	defer os.Remove(path)

	if err := s.synthesize(j.ctx, req, path); err != nil {
		return err
	}
	finished := make(chan struct{})
	s.mu.Lock()
	if err := j.ctx.Err(); err != nil {
		s.mu.Unlock()
		return err
	}
	err := s.opts.Player.Play(path, req.Volume, func() { close(finished) })
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("play: %w", err)
	}
	j.h.start()

	select {
	case <-finished:
		return nil
	case <-j.ctx.Done():
		s.opts.Player.Stop()
		return j.ctx.Err()
	}
}

func (s *Synth) synthesize(ctx context.Context, req tts.Request, path string) error {
	name := s.opts.Provider.Name()
	var key string
	if s.opts.Cache != nil && s.opts.KeyFunc != nil {
		key = s.opts.KeyFunc(name, req)
		if _, ok := s.opts.Cache.Load(ctx, key, path); ok {
			slog.Debug("Speech: clip cache hit", "text", req.Text)
			return nil
		}
	}

	format, err := s.opts.Provider.Synthesize(ctx, req, path)
	if err != nil {
		return fmt.Errorf("synthesize with %s: %w", name, err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		return errors.New("synthesis produced no audio")
	}

	if key != "" {
		if err := s.opts.Cache.Save(ctx, key, format, path); err != nil {
			slog.Debug("Speech: clip not cached", "error", err)
		}
	}
	return nil
}
