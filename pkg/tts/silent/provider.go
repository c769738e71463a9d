// Package silent renders every line as a WAV of silence whose length tracks
// the text. It keeps the flow's timing realistic on machines with no speech
// backend and in tests.
package silent

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/generators"
	"github.com/gopxl/beep/v2/wav"

	"authflow/pkg/tts"
	"authflow/pkg/voice"
)

const providerName = "silent"

var format = beep.Format{SampleRate: 22050, NumChannels: 1, Precision: 2}

// WordsPerSecond approximates a narrator at rate 1.0.
const WordsPerSecond = 2.5

const minDuration = 300 * time.Millisecond

// Provider implements tts.Provider without producing audible output.
type Provider struct{}

func NewProvider() *Provider { return &Provider{} }

func (p *Provider) Name() string { return providerName }

// Duration estimates how long text takes to say at the given rate.
func Duration(text string, rate float64) time.Duration {
	if rate <= 0 {
		rate = 1
	}
	words := len(strings.Fields(text))
	d := time.Duration(float64(words) / WordsPerSecond / rate * float64(time.Second))
	return max(d, minDuration)
}

func (p *Provider) Synthesize(ctx context.Context, req tts.Request, outputPath string) (fmtName string, err error) {
	start := time.Now()
	defer func() { tts.Observe(providerName, start, err) }()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	samples := format.SampleRate.N(Duration(req.Text, req.Rate))
	if err := wav.Encode(f, generators.Silence(samples), format); err != nil {
		return "", fmt.Errorf("encode wav: %w", err)
	}
	tts.Log(providerName, req.Text, 200, nil)
	return "wav", nil
}

// Voices returns pseudo voices so the resolver has something to pick from.
func (p *Provider) Voices(ctx context.Context) ([]voice.Descriptor, error) {
	return []voice.Descriptor{
		{ID: "silent-en-GB-f", Name: "Silent (UK, female)", Locale: "en-GB", Gender: voice.GenderFemale, Tags: []string{"local"}},
		{ID: "silent-en-US-m", Name: "Silent (US, male)", Locale: "en-US", Gender: voice.GenderMale, Tags: []string{"local"}},
	}, nil
}
