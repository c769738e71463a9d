package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"authflow/pkg/voice"
)

// Failover tries providers in order, moving on when one returns a FatalError.
// Non-fatal errors are returned immediately; they usually mean the line
// itself is the problem and another backend would fail the same way.
type Failover struct {
	providers []Provider
}

// NewFailover chains providers. At least one is required.
func NewFailover(providers ...Provider) (*Failover, error) {
	if len(providers) == 0 {
		return nil, errors.New("failover requires at least one provider")
	}
	return &Failover{providers: providers}, nil
}

func (f *Failover) Name() string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name()
	}
	return strings.Join(names, ">")
}

// Synthesize implements Provider. A voice ID only applies to the provider
// that listed it, so fallbacks receive an empty voice and use their default.
func (f *Failover) Synthesize(ctx context.Context, req Request, outputPath string) (string, error) {
	var errs []error
	for i, p := range f.providers {
		attempt := req
		if i > 0 {
			attempt.Voice = ""
		}
		format, err := p.Synthesize(ctx, attempt, outputPath)
		if err == nil {
			return format, nil
		}
		if !IsFatalError(err) {
			return "", err
		}
		slog.Warn("TTS: provider failed, trying next", "provider", p.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return "", Fatalf(503, errors.Join(errs...), "all providers failed")
}

// Voices returns the primary provider's voices.
func (f *Failover) Voices(ctx context.Context) ([]voice.Descriptor, error) {
	return f.providers[0].Voices(ctx)
}
