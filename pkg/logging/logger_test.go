package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authflow/pkg/config"
)

func initTemp(t *testing.T, level string) (dir string) {
	t.Helper()
	dir = t.TempDir()
	cfg := &config.LogConfig{
		Server:   config.LogSettings{Path: filepath.Join(dir, "server.log"), Level: level},
		Requests: config.LogSettings{Path: filepath.Join(dir, "requests.log"), Level: "INFO"},
		Events:   config.LogSettings{Path: filepath.Join(dir, "events", "events.log")},
	}
	prev := slog.Default()
	cleanup, err := Init(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		cleanup()
		slog.SetDefault(prev)
	})
	return dir
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	serverLog := filepath.Join(dir, "server.log")
	require.NoError(t, os.WriteFile(serverLog, []byte("previous run\n"), 0o644))

	cfg := &config.LogConfig{
		Server:   config.LogSettings{Path: serverLog, Level: "DEBUG"},
		Requests: config.LogSettings{Path: filepath.Join(dir, "requests.log")},
	}
	prev := slog.Default()
	cleanup, err := Init(cfg)
	require.NoError(t, err)
	defer func() {
		cleanup()
		slog.SetDefault(prev)
	}()

	old, err := os.ReadFile(serverLog + ".old")
	require.NoError(t, err)
	assert.Equal(t, "previous run\n", string(old))
	assert.FileExists(t, filepath.Join(dir, "requests.log"))

	slog.Info("Flow: stage mounted", "stage", "face")
	assert.Contains(t, ServerTail.Last(), "Flow: stage mounted")

	slog.Debug("Narration: probing")
	assert.NotContains(t, ServerTail.Last(), "probing", "status bar stays at INFO")

	data, err := os.ReadFile(serverLog)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Narration: probing")
}

func TestTraceLevel(t *testing.T) {
	dir := initTemp(t, "TRACE")

	TraceDefault("Stage: tick", "countdown", 3)

	data, err := os.ReadFile(filepath.Join(dir, "server.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "level=TRACE")
	assert.Contains(t, string(data), "Stage: tick")
}

func TestTraceSkippedAtDebug(t *testing.T) {
	dir := initTemp(t, "DEBUG")

	TraceDefault("Stage: tick", "countdown", 3)

	data, err := os.ReadFile(filepath.Join(dir, "server.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Stage: tick")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"trace":   LevelTrace,
		"DEBUG":   slog.LevelDebug,
		" info ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"":        slog.LevelInfo,
		"loud":    slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLogEvent(t *testing.T) {
	dir := initTemp(t, "INFO")

	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	LogEvent(&Event{Timestamp: ts, Type: "stage", Title: "fingerprint"})
	LogEvent(&Event{Timestamp: ts, Type: "redirect", Title: "complete", Summary: "https://sac.example.com"})

	data, err := os.ReadFile(filepath.Join(dir, "events", "events.log"))
	require.NoError(t, err)
	want := "[2026-03-01 09:30:00] [stage] fingerprint\n[2026-03-01 09:30:00] [redirect] complete - https://sac.example.com\n"
	assert.Equal(t, want, string(data))
	assert.Equal(t, strings.TrimSuffix(strings.SplitAfter(want, "\n")[1], "\n"), EventTail.Last())
}

func TestLogEvent_BeforeInit(t *testing.T) {
	// Must not panic; the tail still records it
	LogEvent(&Event{Type: "stage", Title: "face"})
	assert.Contains(t, EventTail.Last(), "[stage] face")
}
