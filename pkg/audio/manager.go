// Package audio plays synthesized narration clips on the local speaker.
package audio

import (
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
)

// ErrBusy is returned by Play when another clip is still loaded and the
// caller did not stop it first.
var ErrBusy = errors.New("audio: player busy")

// Player defines the interface for clip playback.
type Player interface {
	// Play starts playback of an audio file at volume (0..1).
	// onComplete is called when playback finishes, never when stopped.
	Play(path string, volume float64, onComplete func()) error
	// Stop stops current playback without firing onComplete.
	Stop()
	// Shutdown stops playback and releases the device.
	Shutdown()
	// IsPlaying returns true if a clip is loaded.
	IsPlaying() bool
}

// Effects configures the optional terminal voice filter.
type Effects struct {
	Terminal   bool
	LowCutoff  float64
	HighCutoff float64
}

// Manager implements Player using gopxl/beep.
type Manager struct {
	mu                 sync.Mutex
	ctrl               *beep.Ctrl
	track              beep.StreamSeekCloser
	generation         uint64
	speakerInitialized bool
	sampleRate         beep.SampleRate
	effects            Effects
}

// New creates a new Manager instance.
func New(fx Effects) *Manager {
	return &Manager{effects: fx}
}

// Play starts playback of an audio file. A clip already playing is an error;
// the speech layer stops it before starting the next line.
func (m *Manager) Play(path string, volume float64, onComplete func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctrl != nil {
		return ErrBusy
	}

	streamer, format, err := DecodeMedia(path)
	if err != nil {
		return err
	}

	if err := m.ensureSpeakerInitialized(); err != nil {
		streamer.Close()
		return err
	}

	var out beep.Streamer = beep.Resample(3, format.SampleRate, m.sampleRate, streamer)
	if m.effects.Terminal {
		out = NewTerminalFilter(out, float64(m.sampleRate), m.effects.LowCutoff, m.effects.HighCutoff)
	}
	out = &effects.Volume{
		Streamer: out,
		Base:     2,
		Volume:   volumeToPower(volume),
		Silent:   volume <= 0.01,
	}

	m.generation++
	gen := m.generation
	m.track = streamer
	m.ctrl = &beep.Ctrl{Streamer: out}

	speaker.Play(beep.Seq(m.ctrl, beep.Callback(func() {
		// Runs on the speaker goroutine with its lock held.
		go m.finish(gen, onComplete)
	})))

	slog.Debug("Audio: playing clip", "path", path, "volume", volume, "length", format.SampleRate.D(streamer.Len()))
	return nil
}

func (m *Manager) finish(gen uint64, onComplete func()) {
	m.mu.Lock()
	if gen != m.generation || m.ctrl == nil {
		m.mu.Unlock()
		return
	}
	m.releaseLocked()
	m.mu.Unlock()

	if onComplete != nil {
		onComplete()
	}
}

// Stop stops current playback.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctrl != nil {
		speaker.Clear()
	}
	m.generation++
	m.releaseLocked()
}

func (m *Manager) releaseLocked() {
	if m.track != nil {
		m.track.Close()
		m.track = nil
	}
	m.ctrl = nil
}

func (m *Manager) ensureSpeakerInitialized() error {
	const targetSampleRate = beep.SampleRate(48000)
	if m.speakerInitialized {
		return nil
	}
	if err := speaker.Init(targetSampleRate, targetSampleRate.N(time.Second/10)); err != nil {
		slog.Error("Failed to initialize speaker", "error", err)
		return err
	}
	m.speakerInitialized = true
	m.sampleRate = targetSampleRate
	return nil
}

// Shutdown stops playback and closes the output device.
func (m *Manager) Shutdown() {
	m.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.speakerInitialized {
		speaker.Close()
		m.speakerInitialized = false
	}
}

// IsPlaying returns true if a clip is loaded.
func (m *Manager) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctrl != nil
}

// volumeToPower converts a 0..1 volume to the base-2 exponent beep's Volume
// effect takes. Near-zero is treated as mute.
func volumeToPower(vol float64) float64 {
	if vol <= 0.01 {
		return -10
	}
	return math.Log2(min(vol, 1))
}
