// Package azure speaks through the Azure Cognitive Services speech REST API.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"authflow/pkg/tts"
	"authflow/pkg/voice"
)

const (
	providerName = "azure-speech"
	outputFormat = "audio-24khz-160kbitrate-mono-mp3"
)

// Config holds the subscription credentials.
type Config struct {
	Key     string
	Region  string
	VoiceID string
	// BaseURL overrides the regional endpoint; used by tests.
	BaseURL string
}

// Provider implements tts.Provider for Azure Speech.
type Provider struct {
	cfg    Config
	client *http.Client
}

// NewProvider returns an Azure Speech provider for cfg.
func NewProvider(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://" + cfg.Region + ".tts.speech.microsoft.com"
	}
	return &Provider{cfg: cfg, client: &http.Client{Timeout: 30 * time.Second}}
}

func (p *Provider) Name() string { return providerName }

// call performs an authenticated request. Missing credentials, transport
// failures and any status other than 200 and 400 are fatal; a 400 means
// the request itself was bad.
func (p *Provider) call(ctx context.Context, method, path string, body io.Reader, header http.Header) (*http.Response, error) {
	if p.cfg.Key == "" {
		return nil, tts.NewFatalError(http.StatusUnauthorized, "azure speech key not configured")
	}
	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.cfg.Key)
	req.Header.Set("User-Agent", "authflow")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, tts.Fatalf(0, err, "azure speech unreachable")
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}
	defer resp.Body.Close()

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(detail))
	if msg == "" {
		msg = resp.Status
	}
	if resp.StatusCode == http.StatusBadRequest {
		return nil, fmt.Errorf("azure speech rejected request: %s", msg)
	}
	return nil, tts.NewFatalError(resp.StatusCode, fmt.Sprintf("azure speech %s %s: %s", method, path, msg))
}

// Synthesize writes an MP3 of req to outputPath.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request, outputPath string) (format string, err error) {
	start := time.Now()
	defer func() { tts.Observe(providerName, start, err) }()

	if req.Voice == "" {
		req.Voice = p.cfg.VoiceID
	}
	if req.Voice == "" {
		return "", errors.New("no voice ID configured for Azure Speech")
	}
	ssml := tts.BuildSSML(req)
	if err := wellFormed(ssml); err != nil {
		return "", fmt.Errorf("invalid ssml: %w", err)
	}

	resp, err := p.call(ctx, http.MethodPost, "/cognitiveservices/v1", strings.NewReader(ssml), http.Header{
		"Content-Type":             {"application/ssml+xml"},
		"X-Microsoft-Outputformat": {outputFormat},
	})
	if err != nil {
		tts.Log(providerName, req.Text, tts.StatusOf(err), err)
		return "", err
	}
	tts.Log(providerName, req.Text, resp.StatusCode, nil)
	defer resp.Body.Close()

	f, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	return "mp3", nil
}

type voiceEntry struct {
	ShortName   string `json:"ShortName"`
	DisplayName string `json:"DisplayName"`
	Gender      string `json:"Gender"`
	Locale      string `json:"Locale"`
	VoiceType   string `json:"VoiceType"`
}

func (e voiceEntry) descriptor() voice.Descriptor {
	d := voice.Descriptor{
		ID:     e.ShortName,
		Name:   e.DisplayName,
		Locale: e.Locale,
		Gender: voice.ParseGender(e.Gender),
	}
	if e.VoiceType == "Neural" {
		d.Tags = []string{"neural"}
	}
	return d
}

// Voices lists the voices available in the configured region.
func (p *Provider) Voices(ctx context.Context) ([]voice.Descriptor, error) {
	resp, err := p.call(ctx, http.MethodGet, "/cognitiveservices/voices/list", http.NoBody, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var entries []voiceEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode voices: %w", err)
	}
	out := make([]voice.Descriptor, len(entries))
	for i, e := range entries {
		out[i] = e.descriptor()
	}
	return out, nil
}

// wellFormed reports XML syntax errors in ssml.
func wellFormed(ssml string) error {
	dec := xml.NewDecoder(bytes.NewReader([]byte(ssml)))
	for {
		if _, err := dec.Token(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
