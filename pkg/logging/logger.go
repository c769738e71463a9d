// Package logging sets up the server, request and event logs.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"authflow/pkg/config"
)

// RequestLogger receives one line per HTTP request. It discards until Init.
var RequestLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var events = &eventLog{}

// Event is one line of the flow event log.
type Event struct {
	Timestamp time.Time
	Type      string
	Title     string
	Summary   string
}

// String renders the event as "[2006-01-02 15:04:05] [type] Title - Summary".
func (e *Event) String() string {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	line := fmt.Sprintf("[%s] [%s] %s", ts.Format(time.DateTime), e.Type, e.Title)
	if e.Summary != "" {
		line += " - " + e.Summary
	}
	return line
}

// Init opens the log files named in cfg, keeping the previous run's files as
// .old, and installs the server logger as the slog default. The returned
// function closes everything Init opened.
func Init(cfg *config.LogConfig) (func(), error) {
	rotatePaths(cfg.Server.Path, cfg.Requests.Path, cfg.Events.Path, cfg.TTS.Path)

	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	server, err := openLog(cfg.Server.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open server log: %w", err)
	}
	files = append(files, server)

	requests, err := openLog(cfg.Requests.Path)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to open requests log: %w", err)
	}
	files = append(files, requests)

	if cfg.Events.Path != "" {
		ev, err := openLog(cfg.Events.Path)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to open event log: %w", err)
		}
		files = append(files, ev)
		events.set(ev)
	}

	level := ParseLevel(cfg.Server.Level)
	slog.SetDefault(slog.New(fanout{
		textHandler(server, level),
		// console and status bar never go below INFO
		textHandler(os.Stdout, max(level, slog.LevelInfo)),
		textHandler(ServerTail, slog.LevelInfo),
	}))
	RequestLogger = slog.New(textHandler(requests, ParseLevel(cfg.Requests.Level)))

	return func() {
		events.set(nil)
		closeAll()
	}, nil
}

// ParseLevel maps TRACE, DEBUG, INFO, WARN and ERROR to a level. Anything
// else is INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func textHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		AddSource:   level <= slog.LevelDebug,
		ReplaceAttr: replaceLevel,
	})
}

func openLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

//nolint:gocritic // slog.Handler takes the record by value
func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// rotatePaths renames existing log files to .old, replacing older copies.
func rotatePaths(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		old := p + ".old"
		_ = os.Remove(old)
		_ = os.Rename(p, old)
	}
}

type eventLog struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *eventLog) set(w io.Writer) {
	l.mu.Lock()
	l.w = w
	l.mu.Unlock()
}

// LogEvent appends event to the event log and to EventTail. Before Init, or
// without an event log path, only EventTail sees it.
func LogEvent(event *Event) {
	line := event.String()
	_, _ = EventTail.Write([]byte(line))

	events.mu.Lock()
	defer events.mu.Unlock()
	if events.w == nil {
		return
	}
	if _, err := io.WriteString(events.w, line+"\n"); err != nil {
		slog.Error("Failed to write event log", "error", err)
	}
}
