package config

import (
	"context"
	"strconv"
	"time"

	"authflow/pkg/store"
)

// Provider resolves settings that may be overridden at runtime.
type Provider interface {
	NarrationRate(ctx context.Context) float64
	NarrationPitch(ctx context.Context) float64
	NarrationVolume(ctx context.Context) float64
	NarrationVoice(ctx context.Context) string
	NarrationWatchdog(ctx context.Context) time.Duration
	RedirectURL(ctx context.Context) string

	// AppConfig is the file configuration without overrides.
	AppConfig() *Config
}

// UnifiedProvider layers persistent state overrides over the file config.
// Stored values that fail to parse or fall outside their bounds are ignored.
type UnifiedProvider struct {
	base  *Config
	store store.StateStore
}

// NewProvider returns a provider over base. st may be nil, in which case
// only the file config is used.
func NewProvider(base *Config, st store.StateStore) *UnifiedProvider {
	return &UnifiedProvider{base: base, store: st}
}

func (p *UnifiedProvider) AppConfig() *Config { return p.base }

func (p *UnifiedProvider) NarrationRate(ctx context.Context) float64 {
	return override(ctx, p, KeyNarrationRate, p.base.Narration.Rate, parseBounded(KeyNarrationRate))
}

func (p *UnifiedProvider) NarrationPitch(ctx context.Context) float64 {
	return override(ctx, p, KeyNarrationPitch, p.base.Narration.Pitch, parseBounded(KeyNarrationPitch))
}

func (p *UnifiedProvider) NarrationVolume(ctx context.Context) float64 {
	return override(ctx, p, KeyNarrationVolume, p.base.Narration.Volume, parseBounded(KeyNarrationVolume))
}

func (p *UnifiedProvider) NarrationVoice(ctx context.Context) string {
	return override(ctx, p, KeyNarrationVoice, p.base.Narration.Voice, parseText)
}

// NarrationWatchdog is file-only.
func (p *UnifiedProvider) NarrationWatchdog(context.Context) time.Duration {
	return p.base.Narration.Watchdog.Std()
}

func (p *UnifiedProvider) RedirectURL(ctx context.Context) string {
	return override(ctx, p, KeyRedirectURL, p.base.Flow.RedirectURL, func(s string) (string, bool) {
		return s, CheckRedirectURL(s) == nil
	})
}

func override[T any](ctx context.Context, p *UnifiedProvider, key string, fallback T, parse func(string) (T, bool)) T {
	if p.store == nil {
		return fallback
	}
	raw, ok := p.store.GetState(ctx, key)
	if !ok || raw == "" {
		return fallback
	}
	if v, ok := parse(raw); ok {
		return v
	}
	return fallback
}

func parseText(s string) (string, bool) { return s, true }

func parseBounded(key string) func(string) (float64, bool) {
	return func(s string) (float64, bool) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, CheckRange(key, f) == nil
	}
}
