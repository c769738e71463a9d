// Package maintenance trims the local database.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"authflow/pkg/db"
)

// Retention bounds how long cached clips and run history are kept. Zero
// keeps rows forever.
type Retention struct {
	Clips time.Duration
	Runs  time.Duration
}

// DefaultRetention keeps clips for 30 days and runs for 90.
var DefaultRetention = Retention{
	Clips: 30 * 24 * time.Hour,
	Runs:  90 * 24 * time.Hour,
}

type task struct {
	name  string
	keep  time.Duration
	prune func(context.Context, time.Duration) (int64, error)
}

// Run prunes expired rows and returns how many were removed. Failures are
// logged and skipped; a canceled ctx stops before the next task.
func Run(ctx context.Context, d *db.DB, r Retention) int64 {
	tasks := []task{
		{"clip cache", r.Clips, d.PruneCache},
		{"run history", r.Runs, d.PruneRuns},
	}

	var total int64
	for _, t := range tasks {
		if ctx.Err() != nil {
			return total
		}
		if t.keep <= 0 {
			continue
		}
		n, err := t.prune(ctx, t.keep)
		if err != nil {
			slog.Error("Pruning failed", "table", t.name, "error", err)
			continue
		}
		if n > 0 {
			slog.Info("Pruned expired rows", "table", t.name, "removed", n)
		}
		total += n
	}
	slog.Debug("Database maintenance done", "removed", total)
	return total
}
