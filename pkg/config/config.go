package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	DB        DBConfig        `yaml:"db"`
	TTS       TTSConfig       `yaml:"tts"`
	Audio     AudioConfig     `yaml:"audio"`
	Narration NarrationConfig `yaml:"narration"`
	Stages    StagesConfig    `yaml:"stages"`
	Flow      FlowConfig      `yaml:"flow"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	Events   LogSettings `yaml:"events"`
	TTS      LogSettings `yaml:"tts"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path           string   `yaml:"path"`
	ClipRetention  Duration `yaml:"clip_retention"`
	RunRetention   Duration `yaml:"run_retention"`
	MaintainPeriod Duration `yaml:"maintain_period"`
}

// EdgeTTSConfig holds settings for Edge TTS.
type EdgeTTSConfig struct {
	VoiceID string `yaml:"voice"` // e.g. "en-GB-SoniaNeural"
}

// AzureSpeechConfig holds settings for Azure Speech TTS.
type AzureSpeechConfig struct {
	Key     string `yaml:"key"`
	Region  string `yaml:"region"` // e.g., "eastus"
	VoiceID string `yaml:"voice"`
}

// TTSConfig holds Text-To-Speech settings.
type TTSConfig struct {
	Engine       string            `yaml:"engine"`
	Fallback     []string          `yaml:"fallback"`
	Cache        bool              `yaml:"cache"`
	TempDir      string            `yaml:"temp_dir"`
	VoiceRefresh Duration          `yaml:"voice_refresh"`
	EdgeTTS      EdgeTTSConfig     `yaml:"edge_tts"`
	AzureSpeech  AzureSpeechConfig `yaml:"azure_speech"`
}

// AudioConfig holds playback settings.
type AudioConfig struct {
	Terminal   bool      `yaml:"terminal"`
	LowCutoff  Frequency `yaml:"low_cutoff"`
	HighCutoff Frequency `yaml:"high_cutoff"`
}

// NarrationConfig holds the narrator's voice settings.
type NarrationConfig struct {
	Rate     float64  `yaml:"rate"`
	Pitch    float64  `yaml:"pitch"`
	Volume   float64  `yaml:"volume"`
	Voice    string   `yaml:"voice"` // exact name or provider ID
	Watchdog Duration `yaml:"watchdog"`
}

// FaceStageConfig times the face scan.
type FaceStageConfig struct {
	Delay   Duration `yaml:"delay"`
	Tick    Duration `yaml:"tick"`
	From    int      `yaml:"from"`
	Hold    Duration `yaml:"hold"`
	Intro   string   `yaml:"intro"`
	Success string   `yaml:"success"`
}

// FingerprintStageConfig times the fingerprint scan.
type FingerprintStageConfig struct {
	Delay   Duration `yaml:"delay"`
	Tick    Duration `yaml:"tick"`
	Step    int      `yaml:"step"`
	Hold    Duration `yaml:"hold"`
	Intro   string   `yaml:"intro"`
	Success string   `yaml:"success"`
}

// CountdownStageConfig times the spoken countdown.
type CountdownStageConfig struct {
	Delay Duration `yaml:"delay"`
	From  int      `yaml:"from"`
	Pause Duration `yaml:"pause"`
	Gap   Duration `yaml:"gap"`
	Hold  Duration `yaml:"hold"`
	Intro string   `yaml:"intro"`
	Final string   `yaml:"final"`
}

// LaunchedStageConfig times the closing screen.
type LaunchedStageConfig struct {
	Delay Duration `yaml:"delay"`
	Hold  Duration `yaml:"hold"`
	Line  string   `yaml:"line"`
}

// StagesConfig holds the per-stage scripts.
type StagesConfig struct {
	Face        FaceStageConfig        `yaml:"face"`
	Fingerprint FingerprintStageConfig `yaml:"fingerprint"`
	Countdown   CountdownStageConfig   `yaml:"countdown"`
	Launched    LaunchedStageConfig    `yaml:"launched"`
}

// FlowConfig holds the presentation around the stages.
type FlowConfig struct {
	RedirectURL  string `yaml:"redirect_url"`
	Title        string `yaml:"title"`
	Subtitle     string `yaml:"subtitle"`
	WelcomeLabel string `yaml:"welcome_label"`
	LaunchLabel  string `yaml:"launch_label"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
			Events: LogSettings{
				Path:  "./logs/events.log",
				Level: "INFO",
			},
			TTS: LogSettings{
				Path:  "./logs/tts.log",
				Level: "INFO",
			},
		},
		Server: ServerConfig{
			Address: "localhost:1930",
		},
		DB: DBConfig{
			Path:           "./data/authflow.db",
			ClipRetention:  Duration(30 * Day),
			RunRetention:   Duration(90 * Day),
			MaintainPeriod: Duration(Day),
		},
		TTS: TTSConfig{
			Engine:       "edge-tts",
			Fallback:     []string{"silent"},
			Cache:        true,
			TempDir:      "./data/tts",
			VoiceRefresh: Duration(time.Minute),
			EdgeTTS: EdgeTTSConfig{
				VoiceID: "en-GB-SoniaNeural",
			},
			AzureSpeech: AzureSpeechConfig{
				VoiceID: "en-GB-SoniaNeural",
			},
		},
		Audio: AudioConfig{
			Terminal:   false,
			LowCutoff:  Frequency(300),
			HighCutoff: Frequency(3400),
		},
		Narration: NarrationConfig{
			Rate:     1.1,
			Pitch:    1.0,
			Volume:   1.0,
			Voice:    "",
			Watchdog: Duration(20 * time.Second),
		},
		Stages: StagesConfig{
			Face: FaceStageConfig{
				Delay:   Duration(time.Second),
				Tick:    Duration(time.Second),
				From:    5,
				Hold:    Duration(500 * time.Millisecond),
				Intro:   "Please position your face within the scanning frame",
				Success: "Face captured successfully. Proceeding to second stage of authentication",
			},
			Fingerprint: FingerprintStageConfig{
				Delay:   Duration(500 * time.Millisecond),
				Tick:    Duration(100 * time.Millisecond),
				Step:    2,
				Hold:    Duration(time.Second),
				Intro:   "Please place your finger on the scanner",
				Success: "Fingerprint matched. Identity verified. Welcome MD Aasif, Dean of Student Affairs",
			},
			Countdown: CountdownStageConfig{
				Delay: Duration(time.Second),
				From:  5,
				Pause: Duration(time.Second),
				Gap:   Duration(800 * time.Millisecond),
				Hold:  Duration(time.Second),
				Intro: "Authentication complete. Redirecting in 5 seconds.",
				Final: "Access granted",
			},
			Launched: LaunchedStageConfig{
				Delay: Duration(time.Second),
				Hold:  Duration(2 * time.Second),
				Line:  "Web launched successfully. Redirecting to SAC portal",
			},
		},
		Flow: FlowConfig{
			RedirectURL:  "https://sac.example.com",
			Title:        "WELCOME Dr. M D ASIF",
			Subtitle:     "DEAN Student Affairs",
			WelcomeLabel: "INITIALIZE SCAN",
			LaunchLabel:  "LAUNCH WEB",
		},
	}
}

// Load reads the config at path over the defaults. A missing file is created
// with the defaults; an existing one is never rewritten, so its comments and
// layout survive. Environment fallbacks are applied after reading and are
// never saved.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = os.Getenv(key)
		}
	}
	fill(&c.TTS.AzureSpeech.Key, "AZURE_SPEECH_KEY")
	fill(&c.TTS.AzureSpeech.Region, "AZURE_SPEECH_REGION")
	if url := os.Getenv("AUTHFLOW_REDIRECT_URL"); url != "" {
		c.Flow.RedirectURL = url
	}
}

var redirectPattern = regexp.MustCompile(`^https?://[^\s/]+`)

// Validate rejects settings the flow cannot run with.
func (c *Config) Validate() error {
	if err := CheckRedirectURL(c.Flow.RedirectURL); err != nil {
		return err
	}
	if c.Stages.Face.From < 1 || c.Stages.Countdown.From < 1 {
		return fmt.Errorf("countdowns must start at 1 or higher")
	}
	if c.Stages.Fingerprint.Step < 1 || c.Stages.Fingerprint.Step > 100 {
		return fmt.Errorf("invalid fingerprint step %d: must be within 1..100", c.Stages.Fingerprint.Step)
	}
	if c.Audio.LowCutoff >= c.Audio.HighCutoff {
		return fmt.Errorf("audio low_cutoff %.0fHz must be below high_cutoff %.0fHz", float64(c.Audio.LowCutoff), float64(c.Audio.HighCutoff))
	}
	return nil
}

const fileHeader = `AuthFlow Configuration
---------------------
Supported Units:
  Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
  Frequency: Hz, kHz`

// fieldNotes are written above the matching keys, addressed by dotted path.
var fieldNotes = map[string]string{
	"tts.engine":         "Options: edge-tts, azure-speech, windows-sapi, silent. Join with > to fail over, e.g. edge-tts>silent",
	"narration.voice":    "Exact voice name; empty prefers a British English female voice",
	"narration.watchdog": "Ends a line that never reports back; 0s disables",
	"flow.redirect_url":  "Where the page goes once the countdown finishes",
}

// Save writes cfg to path as commented YAML, creating the directory.
func Save(path string, cfg *Config) error {
	var body yaml.Node
	if err := body.Encode(cfg); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	annotate(&body, "")
	doc := yaml.Node{Kind: yaml.DocumentNode, HeadComment: fileHeader, Content: []*yaml.Node{&body}}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func annotate(n *yaml.Node, prefix string) {
	if n.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		path := key.Value
		if prefix != "" {
			path = prefix + "." + key.Value
		}
		if note, ok := fieldNotes[path]; ok {
			key.HeadComment = note
		}
		annotate(val, path)
	}
}

// GenerateDefault writes the default config to path unless a file is
// already there.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return Save(path, DefaultConfig())
}
