package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authflow/pkg/db"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return NewSQLiteStore(d)
}

func TestCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok := s.GetCache(ctx, "clip:missing")
	assert.False(t, ok)

	payload := []byte("wav\x00RIFF....data")
	require.NoError(t, s.SetCache(ctx, "clip:abc", payload))

	got, ok := s.GetCache(ctx, "clip:abc")
	require.True(t, ok)
	assert.Equal(t, payload, got)

	require.NoError(t, s.SetCache(ctx, "other:x", []byte("y")))
	n, err := s.CountCache(ctx, "clip:")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCache_CompressesWhenSmaller(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	silence := make([]byte, 64<<10)
	require.NoError(t, s.SetCache(ctx, "clip:pcm", silence))

	var stored []byte
	require.NoError(t, s.db.QueryRow("SELECT value FROM cache WHERE key = 'clip:pcm'").Scan(&stored))
	assert.Less(t, len(stored), len(silence)/10)

	got, ok := s.GetCache(ctx, "clip:pcm")
	require.True(t, ok)
	assert.Equal(t, silence, got)

	// Round trips whichever way it was stored
	dense := make([]byte, 4096)
	for i := range dense {
		dense[i] = byte(i*7919 ^ i>>3)
	}
	require.NoError(t, s.SetCache(ctx, "clip:mp3", dense))
	got, ok = s.GetCache(ctx, "clip:mp3")
	require.True(t, ok)
	assert.Equal(t, dense, got)
}

func TestRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	first := &Run{ID: "run-1", StartedAt: base, LastStage: "face", Outcome: OutcomeRunning}
	require.NoError(t, s.SaveRun(ctx, first))

	done := base.Add(40 * time.Second)
	second := &Run{ID: "run-2", StartedAt: base.Add(time.Minute), FinishedAt: &done, LastStage: "complete", Outcome: OutcomeRedirected, Lines: 12}
	require.NoError(t, s.SaveRun(ctx, second))

	got, err := s.GetRun(ctx, "run-2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, OutcomeRedirected, got.Outcome)
	assert.Equal(t, 12, got.Lines)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, done.Equal(*got.FinishedAt))

	missing, err := s.GetRun(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Update in place
	first.Outcome = OutcomeAborted
	require.NoError(t, s.SaveRun(ctx, first))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, OutcomeAborted, runs[1].Outcome)
	assert.Nil(t, runs[1].FinishedAt)
}

func TestState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok := s.GetState(ctx, "narration_rate")
	assert.False(t, ok)

	require.NoError(t, s.SetState(ctx, "narration_rate", "1.25"))
	require.NoError(t, s.SetState(ctx, "narration_rate", "0.9"))
	val, ok := s.GetState(ctx, "narration_rate")
	require.True(t, ok)
	assert.Equal(t, "0.9", val)

	require.NoError(t, s.DeleteState(ctx, "narration_rate"))
	_, ok = s.GetState(ctx, "narration_rate")
	assert.False(t, ok)
}
