package tts

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// history records every synthesis attempt, one record per line, separate
// from the server log so the spoken script can be reviewed on its own.
var history struct {
	mu   sync.Mutex
	path string
	file io.WriteCloser
	log  *slog.Logger
}

// SetLogPath points the history at path, closing any file already open.
// An empty path turns the history off.
func SetLogPath(path string) {
	history.mu.Lock()
	defer history.mu.Unlock()
	if history.file != nil {
		history.file.Close()
		history.file = nil
		history.log = nil
	}
	history.path = path
}

// Log records one synthesis attempt. A nil err logs status as the outcome.
func Log(provider, text string, status int, err error) {
	history.mu.Lock()
	defer history.mu.Unlock()
	if history.path == "" {
		return
	}
	if history.log == nil {
		if mkErr := os.MkdirAll(filepath.Dir(history.path), 0o755); mkErr != nil {
			return
		}
		f, openErr := os.OpenFile(history.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if openErr != nil {
			return
		}
		history.file = f
		history.log = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == slog.LevelKey {
					return slog.Attr{}
				}
				return a
			},
		}))
	}

	if err != nil {
		history.log.Warn("synthesis failed", "provider", provider, "status", status, "error", err, "text", text)
		return
	}
	history.log.Info("synthesized", "provider", provider, "status", status, "chars", len([]rune(text)), "text", text)
}
