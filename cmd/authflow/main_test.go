package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authflow/pkg/flow"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	tempConfig := `
server:
    address: localhost:0
log:
    server:
        path: "` + filepath.ToSlash(filepath.Join(dir, "server.log")) + `"
        level: "debug"
    requests:
        path: "` + filepath.ToSlash(filepath.Join(dir, "requests.log")) + `"
    events:
        path: "` + filepath.ToSlash(filepath.Join(dir, "events.log")) + `"
    tts:
        path: "` + filepath.ToSlash(filepath.Join(dir, "tts.log")) + `"
db:
    path: "` + filepath.ToSlash(filepath.Join(dir, "authflow.db")) + `"
tts:
    engine: "silent"
    temp_dir: "` + filepath.ToSlash(filepath.Join(dir, "tts")) + `"
`
	path := filepath.Join(dir, "authflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(tempConfig), 0o644))

	// Cancel quickly to verify the startup sequence
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, run(ctx, path))
	assert.FileExists(t, filepath.Join(dir, "authflow.db"))
	assert.DirExists(t, filepath.Join(dir, "tts"))
}

func TestEventLogEntry(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	e := eventLogEntry(flow.Event{Type: flow.EventLine, RunID: "r1", Stage: flow.Face, Line: "hello", At: at})
	assert.Equal(t, "line", e.Type)
	assert.Equal(t, "face", e.Title)
	assert.Equal(t, "hello", e.Summary)
	assert.Equal(t, at, e.Timestamp)

	e = eventLogEntry(flow.Event{Type: flow.EventRedirect, RunID: "r1", Stage: flow.Complete, URL: "https://x"})
	assert.Equal(t, "https://x", e.Summary)

	e = eventLogEntry(flow.Event{Type: flow.EventStage, RunID: "r1", Stage: flow.Welcome})
	assert.Equal(t, "r1", e.Summary)
}
