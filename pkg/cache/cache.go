// Package cache keeps synthesized narration clips so repeated runs replay a
// line without calling the TTS backend again.
package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"authflow/pkg/store"
	"authflow/pkg/tts"
)

const keyPrefix = "clip:"

var lookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "clip_cache_lookups_total",
	Help: "Clip cache lookups by result",
}, []string{"result"})

// Clips stores audio files in a CacheStore. Values are the audio format,
// a NUL byte, then the file contents.
type Clips struct {
	store store.CacheStore
}

// NewClips creates a clip cache over s.
func NewClips(s store.CacheStore) *Clips {
	return &Clips{store: s}
}

// Key derives the cache key from everything that changes the audio.
func Key(provider string, req tts.Request) string {
	h := sha256.New()
	for _, part := range []string{
		provider,
		req.Voice,
		strconv.FormatFloat(req.Rate, 'f', 2, 64),
		strconv.FormatFloat(req.Pitch, 'f', 2, 64),
		req.Text,
	} {
		h.Write([]byte(part))
		h.Write([]byte{'|'})
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Load writes the cached clip for key to path and returns its format.
func (c *Clips) Load(ctx context.Context, key, path string) (string, bool) {
	val, ok := c.store.GetCache(ctx, key)
	if !ok {
		lookups.WithLabelValues("miss").Inc()
		return "", false
	}
	format, audio, found := bytes.Cut(val, []byte{0})
	if !found || len(audio) < tts.MinAudioSize {
		lookups.WithLabelValues("corrupt").Inc()
		return "", false
	}
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", false
	}
	lookups.WithLabelValues("hit").Inc()
	return string(format), true
}

// Save stores the clip at path under key.
func (c *Clips) Save(ctx context.Context, key, format, path string) error {
	audio, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read clip: %w", err)
	}
	if len(audio) < tts.MinAudioSize {
		return errors.New("clip too small to cache")
	}
	val := make([]byte, 0, len(format)+1+len(audio))
	val = append(val, format...)
	val = append(val, 0)
	val = append(val, audio...)
	return c.store.SetCache(ctx, key, val)
}

// Count returns the number of cached clips.
func (c *Clips) Count(ctx context.Context) (int, error) {
	return c.store.CountCache(ctx, keyPrefix)
}
