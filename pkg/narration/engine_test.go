package narration

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authflow/pkg/loop"
	"authflow/pkg/speech"
	"authflow/pkg/speech/mockspeech"
	"authflow/pkg/voice"
)

var (
	usFemale = voice.Descriptor{ID: "us-f", Name: "Aria", Locale: "en-US", Gender: voice.GenderFemale}
	gbFemale = voice.Descriptor{ID: "gb-f", Name: "Sonia", Locale: "en-GB", Gender: voice.GenderFemale}
)

func newEngine(t *testing.T, cfg Config, voices ...voice.Descriptor) (*Engine, *loop.Manual, *mockspeech.Client) {
	t.Helper()
	l := loop.NewManual()
	c := mockspeech.NewClient(l, voices...)
	return New(l, c, cfg), l, c
}

func TestSpeakCompletesOnce(t *testing.T) {
	e, l, c := newEngine(t, Config{}, usFemale, gbFemale)

	calls := 0
	e.Speak("Access granted", Options{OnComplete: func() { calls++ }})
	assert.True(t, e.IsSpeaking())
	assert.True(t, e.IsSupported())

	require.True(t, c.Finish())
	l.Drain()

	assert.Equal(t, 1, calls)
	assert.False(t, e.IsSpeaking())

	// A duplicate end from a misbehaving backend is dropped.
	c.Calls()[0].Handlers.OnEnd()
	l.Drain()
	assert.Equal(t, 1, calls)
}

func TestSupersededSessionNeverCallsBack(t *testing.T) {
	e, l, c := newEngine(t, Config{}, gbFemale)

	var got []string
	e.Speak("first", Options{OnComplete: func() { got = append(got, "first") }})
	first := c.Calls()[0]
	e.Speak("second", Options{OnComplete: func() { got = append(got, "second") }})
	l.Drain()

	// The capability interrupted the first line; that error was stale.
	assert.ErrorIs(t, first.Err, speech.ErrInterrupted)
	assert.Empty(t, got)

	// A late end for the first line is stale too.
	first.Handlers.OnEnd()
	l.Drain()
	assert.Empty(t, got)

	require.True(t, c.Finish())
	l.Drain()
	assert.Equal(t, []string{"second"}, got)
}

func TestCancel(t *testing.T) {
	e, l, c := newEngine(t, Config{}, gbFemale)

	called := false
	e.Speak("line", Options{OnComplete: func() { called = true }})
	call := c.Calls()[0]

	e.Cancel()
	assert.False(t, e.IsSpeaking())
	e.Cancel()
	assert.False(t, e.IsSpeaking())

	call.Handlers.OnEnd()
	l.Drain()
	assert.False(t, called)
	assert.Equal(t, 0, c.Pending())
}

func TestSynthesisErrorStillCompletes(t *testing.T) {
	e, l, c := newEngine(t, Config{}, gbFemale)

	called := 0
	e.Speak("line", Options{OnComplete: func() { called++ }})
	require.True(t, c.Fail(errors.New("device muted")))
	l.Drain()

	assert.Equal(t, 1, called)
	assert.False(t, e.IsSpeaking())
}

func TestEmptyVoiceSetUsesDefault(t *testing.T) {
	e, l, c := newEngine(t, Config{})

	called := false
	assert.NotPanics(t, func() {
		e.Speak("hello", Options{OnComplete: func() { called = true }})
	})
	require.Len(t, c.Calls(), 1)
	assert.Nil(t, c.Calls()[0].Utterance.Voice)

	c.Finish()
	l.Drain()
	assert.True(t, called)
}

func TestVoiceResolvedPerRequest(t *testing.T) {
	e, _, c := newEngine(t, Config{}, usFemale)

	e.Speak("one", Options{})
	require.NotNil(t, c.Calls()[0].Utterance.Voice)
	assert.Equal(t, "us-f", c.Calls()[0].Utterance.Voice.ID)

	// Voices loaded late are picked up by the next line.
	c.SetVoices(usFemale, gbFemale)
	e.Speak("two", Options{})
	assert.Equal(t, "gb-f", c.Calls()[1].Utterance.Voice.ID)

	e.Speak("three", Options{Voice: "Aria"})
	assert.Equal(t, "us-f", c.Calls()[2].Utterance.Voice.ID)
}

func TestProsodyDefaultsAndBounds(t *testing.T) {
	e, _, c := newEngine(t, Config{Pitch: 1.2}, gbFemale)

	e.Speak("a", Options{})
	u := c.Calls()[0].Utterance
	assert.Equal(t, DefaultRate, u.Rate)
	assert.Equal(t, 1.2, u.Pitch)
	assert.Equal(t, DefaultVolume, u.Volume)

	e.Speak("b", Options{Rate: 50, Pitch: 3, Volume: 2})
	u = c.Calls()[1].Utterance
	assert.Equal(t, 10.0, u.Rate)
	assert.Equal(t, 2.0, u.Pitch)
	assert.Equal(t, 1.0, u.Volume)
}

func TestUnsupportedIsNoop(t *testing.T) {
	e, l, c := newEngine(t, Config{}, gbFemale)
	c.ProbeErr = speech.ErrUnsupported

	called := false
	e.Speak("line", Options{OnComplete: func() { called = true }})
	l.Advance(time.Minute)

	assert.False(t, e.IsSupported())
	assert.False(t, e.IsSpeaking())
	assert.False(t, called)
	assert.Empty(t, c.Calls())
	assert.NotPanics(t, e.Cancel)
}

func TestEmptyTextIsNoop(t *testing.T) {
	e, _, c := newEngine(t, Config{}, gbFemale)
	e.Speak("", Options{OnComplete: func() { t.Error("callback for empty text") }})
	assert.Empty(t, c.Calls())
	assert.False(t, e.IsSpeaking())
}

func TestWatchdog(t *testing.T) {
	e, l, c := newEngine(t, Config{Watchdog: 20 * time.Second}, gbFemale)

	called := 0
	e.Speak("hangs", Options{OnComplete: func() { called++ }})
	call := c.Calls()[0]

	l.Advance(19 * time.Second)
	assert.Equal(t, 0, called)
	assert.True(t, e.IsSpeaking())

	l.Advance(time.Second)
	assert.Equal(t, 1, called)
	assert.False(t, e.IsSpeaking())
	assert.ErrorIs(t, call.Err, speech.ErrInterrupted)

	call.Handlers.OnEnd()
	l.Drain()
	assert.Equal(t, 1, called)
}

func TestWatchdogStoppedOnCompletion(t *testing.T) {
	e, l, c := newEngine(t, Config{Watchdog: time.Second}, gbFemale)
	e.Speak("quick", Options{})
	c.Finish()
	l.Drain()
	assert.Equal(t, 0, l.Pending())
}

func TestShutdown(t *testing.T) {
	e, _, c := newEngine(t, Config{}, gbFemale)
	e.Speak("a", Options{})
	e.Shutdown()
	assert.False(t, e.IsSpeaking())

	e.Speak("b", Options{})
	assert.Len(t, c.Calls(), 1)
}

func TestOnLineAndStatus(t *testing.T) {
	e, l, c := newEngine(t, Config{}, gbFemale)
	var lines []string
	e.OnLine(func(text string) { lines = append(lines, text) })

	e.Speak("Please place your finger on the scanner", Options{})
	st := e.Status()
	assert.True(t, st.Speaking)
	assert.Equal(t, "Please place your finger on the scanner", st.Line)
	assert.Equal(t, "Sonia", st.Voice)

	c.Finish()
	l.Drain()
	assert.Equal(t, []string{"Please place your finger on the scanner"}, lines)
	assert.False(t, e.Status().Speaking)
	assert.Empty(t, e.Status().Line)
}

func TestBounded(t *testing.T) {
	tests := []struct {
		name              string
		v, fb, def, lo, hi float64
		want              float64
	}{
		{"explicit", 1.5, 1.2, 1.1, 0.1, 10, 1.5},
		{"fallback", 0, 1.2, 1.1, 0.1, 10, 1.2},
		{"default", 0, 0, 1.1, 0.1, 10, 1.1},
		{"negative", -3, 0, 1, 0, 1, 1},
		{"clamp high", 20, 0, 1, 0.1, 10, 10},
		{"clamp low", 0.01, 0, 1, 0.1, 10, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bounded(tt.v, tt.fb, tt.def, tt.lo, tt.hi))
		})
	}
}

func TestConfigureAppliesToNextLine(t *testing.T) {
	e, l, c := newEngine(t, Config{Rate: 1.1, Voice: "Aria"}, usFemale, gbFemale)

	e.Speak("before", Options{})
	e.Configure(Config{Rate: 0.8, Pitch: 1.2, Voice: "Sonia"})
	e.Speak("after", Options{})
	l.Drain()

	calls := c.Calls()
	require.Len(t, calls, 2)
	assert.InDelta(t, 1.1, calls[0].Utterance.Rate, 1e-9)
	assert.Equal(t, "Aria", calls[0].Utterance.Voice.Name)
	assert.InDelta(t, 0.8, calls[1].Utterance.Rate, 1e-9)
	assert.InDelta(t, 1.2, calls[1].Utterance.Pitch, 1e-9)
	assert.Equal(t, "Sonia", calls[1].Utterance.Voice.Name)
}
