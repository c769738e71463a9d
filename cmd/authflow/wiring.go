package main

import (
	"fmt"
	"log/slog"

	"authflow/pkg/config"
	"authflow/pkg/flow"
	"authflow/pkg/stage"
	"authflow/pkg/tts"
	"authflow/pkg/tts/azure"
	"authflow/pkg/tts/edgetts"
	"authflow/pkg/tts/sapi"
	"authflow/pkg/tts/silent"
)

// initProvider builds the configured engine followed by its fallbacks.
// Engines that cannot be built are skipped; the silent engine is always
// last so narration keeps its timing without audio.
func initProvider(cfg *config.Config) (tts.Provider, error) {
	names := append([]string{cfg.TTS.Engine}, cfg.TTS.Fallback...)
	var chain []tts.Provider
	seen := make(map[string]bool)
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		p, err := newProvider(cfg, name)
		if err != nil {
			slog.Warn("TTS: engine unavailable", "engine", name, "error", err)
			continue
		}
		chain = append(chain, p)
	}
	if !seen["silent"] {
		chain = append(chain, silent.NewProvider())
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return tts.NewFailover(chain...)
}

func newProvider(cfg *config.Config, name string) (tts.Provider, error) {
	switch name {
	case "edge-tts":
		return edgetts.NewProvider(edgetts.Config{VoiceID: cfg.TTS.EdgeTTS.VoiceID}), nil
	case "azure-speech":
		az := cfg.TTS.AzureSpeech
		if az.Key == "" || az.Region == "" {
			return nil, fmt.Errorf("azure-speech needs key and region")
		}
		return azure.NewProvider(azure.Config{Key: az.Key, Region: az.Region, VoiceID: az.VoiceID}), nil
	case "sapi", "windows-sapi":
		return sapi.NewProvider(), nil
	case "silent":
		return silent.NewProvider(), nil
	}
	return nil, fmt.Errorf("unknown tts engine %q", name)
}

func scriptsFromConfig(cfg *config.Config) flow.Scripts {
	s := cfg.Stages
	return flow.Scripts{
		WelcomeLabel: cfg.Flow.WelcomeLabel,
		Face: stage.FaceConfig{
			Delay:   s.Face.Delay.Std(),
			Tick:    s.Face.Tick.Std(),
			From:    s.Face.From,
			Hold:    s.Face.Hold.Std(),
			Intro:   s.Face.Intro,
			Success: s.Face.Success,
		},
		Fingerprint: stage.FingerprintConfig{
			Delay:   s.Fingerprint.Delay.Std(),
			Tick:    s.Fingerprint.Tick.Std(),
			Step:    s.Fingerprint.Step,
			Hold:    s.Fingerprint.Hold.Std(),
			Intro:   s.Fingerprint.Intro,
			Success: s.Fingerprint.Success,
		},
		Countdown: stage.CountdownConfig{
			Delay: s.Countdown.Delay.Std(),
			From:  s.Countdown.From,
			Pause: s.Countdown.Pause.Std(),
			Gap:   s.Countdown.Gap.Std(),
			Hold:  s.Countdown.Hold.Std(),
			Intro: s.Countdown.Intro,
			Final: s.Countdown.Final,
		},
		LaunchLabel: cfg.Flow.LaunchLabel,
		Launched: stage.LaunchedConfig{
			Delay: s.Launched.Delay.Std(),
			Hold:  s.Launched.Hold.Std(),
			Line:  s.Launched.Line,
		},
	}
}
