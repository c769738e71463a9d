package logging

import (
	"context"
	"log/slog"
)

// LevelTrace sits below DEBUG. It carries per-tick stage detail and is only
// enabled by a "TRACE" level in the log config.
const LevelTrace = slog.Level(-8)

// TraceDefault logs msg at LevelTrace on the default logger.
func TraceDefault(msg string, args ...any) {
	slog.Default().Log(context.Background(), LevelTrace, msg, args...)
}

// replaceLevel prints LevelTrace as "TRACE" instead of "DEBUG-4".
func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey || len(groups) > 0 {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}
