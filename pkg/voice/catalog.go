package voice

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Source lists the voices a synthesis backend currently offers.
type Source interface {
	Voices(ctx context.Context) ([]Descriptor, error)
}

// Catalog keeps the current voice set and announces when it changes.
// Some backends load voices lazily, so the set may grow after the first
// read; callers must take a fresh Snapshot for every narration.
type Catalog struct {
	src Source

	mu        sync.RWMutex
	voices    []Descriptor
	listeners []func([]Descriptor)
}

// NewCatalog creates an empty catalog over src.
func NewCatalog(src Source) *Catalog {
	return &Catalog{src: src}
}

// Snapshot returns a copy of the current voice set in enumeration order.
func (c *Catalog) Snapshot() []Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.voices)
}

// OnChange registers fn to be called with the new set after each change.
func (c *Catalog) OnChange(fn func([]Descriptor)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Refresh re-reads the set from the source and reports whether it changed.
func (c *Catalog) Refresh(ctx context.Context) (bool, error) {
	if c.src == nil {
		return false, nil
	}
	voices, err := c.src.Voices(ctx)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	if sameSet(c.voices, voices) {
		c.mu.Unlock()
		return false, nil
	}
	c.voices = slices.Clone(voices)
	listeners := slices.Clone(c.listeners)
	snapshot := slices.Clone(voices)
	c.mu.Unlock()

	slog.Info("Voices: availability changed", "count", len(snapshot))
	for _, fn := range listeners {
		fn(snapshot)
	}
	return true, nil
}

// Watch refreshes the catalog every interval until ctx is done.
func (c *Catalog) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Refresh(ctx); err != nil {
				slog.Debug("Voices: refresh failed", "error", err)
			}
		}
	}
}

func sameSet(a, b []Descriptor) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, v := range a {
		seen[v.ID+"|"+v.Name+"|"+v.Locale]++
	}
	for _, v := range b {
		k := v.ID + "|" + v.Name + "|" + v.Locale
		if seen[k] == 0 {
			return false
		}
		seen[k]--
	}
	return true
}
