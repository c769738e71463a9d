// Package edgetts speaks through the Microsoft Edge read-aloud websocket.
package edgetts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"authflow/pkg/tts"
	"authflow/pkg/voice"
)

const providerName = "edge-tts"

// DefaultVoice is used when a request carries no voice ID.
const DefaultVoice = "en-GB-SoniaNeural"

// Config holds the endpoint parameters. Empty endpoint fields fall back to the
// matching EDGE_TTS_* environment variable.
type Config struct {
	BaseURL            string
	Origin             string
	UserAgent          string
	TrustedClientToken string
	SecMSGecVersion    string
	// VoiceID is used when a request carries none.
	VoiceID            string
}

func (c Config) withEnv() Config {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = os.Getenv(key)
		}
	}
	fill(&c.BaseURL, "EDGE_TTS_BASE_URL")
	fill(&c.Origin, "EDGE_TTS_ORIGIN")
	fill(&c.UserAgent, "EDGE_TTS_USER_AGENT")
	fill(&c.TrustedClientToken, "EDGE_TTS_TRUSTED_CLIENT_TOKEN")
	fill(&c.SecMSGecVersion, "EDGE_TTS_SEC_MS_GEC_VERSION")
	return c
}

func (c Config) validate() error {
	var missing []string
	if c.BaseURL == "" {
		missing = append(missing, "base_url")
	}
	if c.TrustedClientToken == "" {
		missing = append(missing, "trusted_client_token")
	}
	if c.SecMSGecVersion == "" {
		missing = append(missing, "sec_ms_gec_version")
	}
	if len(missing) > 0 {
		return tts.NewFatalError(0, "edge-tts not configured: missing "+strings.Join(missing, ", "))
	}
	return nil
}

// Provider implements tts.Provider for Microsoft Edge TTS.
type Provider struct {
	cfg    Config
	dialer *websocket.Dialer
	now    func() time.Time
}

// NewProvider creates a new Edge TTS provider.
func NewProvider(cfg Config) *Provider {
	return &Provider{
		cfg:    cfg.withEnv(),
		dialer: websocket.DefaultDialer,
		now:    time.Now,
	}
}

func (p *Provider) Name() string { return providerName }

// Synthesize generates an .mp3 file using Edge TTS.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request, outputPath string) (format string, err error) {
	start := time.Now()
	defer func() { tts.Observe(providerName, start, err) }()

	if err := p.cfg.validate(); err != nil {
		return "", err
	}
	if req.Voice == "" {
		req.Voice = p.cfg.VoiceID
	}
	if req.Voice == "" {
		req.Voice = DefaultVoice
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	conn, err := p.dial(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if err := p.sendConfig(conn); err != nil {
		return "", err
	}

	requestID := strings.ReplaceAll(uuid.New().String(), "-", "")
	if err := p.sendSSML(conn, req, requestID); err != nil {
		return "", err
	}

	if err := p.consumeResponses(ctx, conn, file); err != nil {
		tts.Log(providerName, req.Text, 0, err)
		return "", err
	}
	tts.Log(providerName, req.Text, http.StatusOK, nil)
	return "mp3", nil
}

func (p *Provider) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if p.cfg.Origin != "" {
		header.Set("Origin", p.cfg.Origin)
	}
	if p.cfg.UserAgent != "" {
		header.Set("User-Agent", p.cfg.UserAgent)
	}
	header.Set("Pragma", "no-cache")
	header.Set("Cache-Control", "no-cache")
	header.Set("Accept-Language", "en-GB,en;q=0.9")
	header.Set("Cookie", "muid="+strings.ReplaceAll(uuid.New().String(), "-", ""))

	url := fmt.Sprintf("%s?TrustedClientToken=%s&Sec-MS-GEC=%s&Sec-MS-GEC-Version=%s",
		p.cfg.BaseURL, p.cfg.TrustedClientToken, p.secMSGec(), p.cfg.SecMSGecVersion)

	var dialErr error
	for attempt := 0; attempt < 3; attempt++ {
		conn, resp, err := p.dialer.DialContext(ctx, url, header)
		if err == nil {
			return conn, nil
		}
		dialErr = err
		if resp != nil {
			slog.Warn("EdgeTTS: handshake failure", "status", resp.Status)
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return nil, tts.NewFatalError(resp.StatusCode, "edge-tts rejected handshake: "+resp.Status)
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return nil, tts.Fatalf(http.StatusServiceUnavailable, dialErr, "websocket dial failed after retries")
}

// secMSGec derives the rolling access token: Windows file-time ticks rounded
// down to five minutes, concatenated with the client token and hashed.
func (p *Provider) secMSGec() string {
	ticks := p.now().Unix() + 11644473600
	ticks -= ticks % 300
	hash := sha256.Sum256([]byte(fmt.Sprintf("%d0000000%s", ticks, p.cfg.TrustedClientToken)))
	return strings.ToUpper(hex.EncodeToString(hash[:]))
}

func (p *Provider) sendConfig(conn *websocket.Conn) error {
	configMsg := "Content-Type:application/json; charset=utf-8\r\nPath:speech.config\r\n\r\n{\"context\":{\"synthesis\":{\"audio\":{\"metadataoptions\":{\"sentenceBoundaryEnabled\":\"false\",\"wordBoundaryEnabled\":\"false\"},\"outputFormat\":\"audio-24khz-48kbitrate-mono-mp3\"}}}}"
	if err := conn.WriteMessage(websocket.TextMessage, []byte(configMsg)); err != nil {
		return fmt.Errorf("failed to send speech.config: %w", err)
	}
	return nil
}

func (p *Provider) sendSSML(conn *websocket.Conn, req tts.Request, requestID string) error {
	ssmlMsg := fmt.Sprintf("X-RequestId:%s\r\nContent-Type:application/ssml+xml\r\nPath:ssml\r\n\r\n%s", requestID, tts.BuildSSML(req))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(ssmlMsg)); err != nil {
		return fmt.Errorf("failed to send ssml: %w", err)
	}
	return nil
}

func (p *Provider) consumeResponses(ctx context.Context, conn *websocket.Conn, file *os.File) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	wrote := 0
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read message failed: %w", err)
		}

		switch msgType {
		case websocket.TextMessage:
			if strings.Contains(string(data), "Path:turn.end") {
				if wrote == 0 {
					return errors.New("edge-tts returned no audio")
				}
				return nil
			}
		case websocket.BinaryMessage:
			n, err := writeAudioFrame(data, file)
			if err != nil {
				return err
			}
			wrote += n
		}
	}
}

// writeAudioFrame strips the big-endian length-prefixed header from a binary
// frame and appends the remaining audio bytes.
func writeAudioFrame(data []byte, file *os.File) (int, error) {
	if len(data) < 2 {
		return 0, nil
	}
	headerLength := int(uint16(data[0])<<8 | uint16(data[1]))
	if len(data) < 2+headerLength {
		return 0, nil
	}
	audioData := data[2+headerLength:]
	if len(audioData) == 0 {
		return 0, nil
	}
	if _, err := file.Write(audioData); err != nil {
		return 0, fmt.Errorf("write audio data failed: %w", err)
	}
	return len(audioData), nil
}

// Voices returns the neural voices this deployment is known to serve.
func (p *Provider) Voices(ctx context.Context) ([]voice.Descriptor, error) {
	return []voice.Descriptor{
		{ID: "en-GB-SoniaNeural", Name: "Sonia (UK)", Locale: "en-GB", Gender: voice.GenderFemale, Tags: []string{"neural"}},
		{ID: "en-GB-LibbyNeural", Name: "Libby (UK)", Locale: "en-GB", Gender: voice.GenderFemale, Tags: []string{"neural"}},
		{ID: "en-GB-RyanNeural", Name: "Ryan (UK)", Locale: "en-GB", Gender: voice.GenderMale, Tags: []string{"neural"}},
		{ID: "en-US-AvaMultilingualNeural", Name: "Ava (Multilingual)", Locale: "en-US", Gender: voice.GenderFemale, Tags: []string{"neural", "multilingual"}},
		{ID: "en-US-AndrewMultilingualNeural", Name: "Andrew (Multilingual)", Locale: "en-US", Gender: voice.GenderMale, Tags: []string{"neural", "multilingual"}},
		{ID: "en-IN-NeerjaNeural", Name: "Neerja (India)", Locale: "en-IN", Gender: voice.GenderFemale, Tags: []string{"neural"}},
		{ID: "fr-FR-VivienneMultilingualNeural", Name: "Vivienne (France)", Locale: "fr-FR", Gender: voice.GenderFemale, Tags: []string{"neural", "multilingual"}},
		{ID: "de-DE-SeraphinaMultilingualNeural", Name: "Seraphina (Germany)", Locale: "de-DE", Gender: voice.GenderFemale, Tags: []string{"neural", "multilingual"}},
	}, nil
}
