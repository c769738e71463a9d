// Package probe runs the startup checks.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultTimeout bounds a probe that sets none.
const DefaultTimeout = 5 * time.Second

// CheckFunc returns nil when the checked resource is usable.
type CheckFunc func(ctx context.Context) error

// Probe is one startup check. A failing Critical probe stops startup.
type Probe struct {
	Name     string
	Check    CheckFunc
	Critical bool
	Timeout  time.Duration
}

// Result is the outcome of one probe.
type Result struct {
	Probe    Probe
	Error    error
	Duration time.Duration
}

// Report holds results in probe order.
type Report []Result

// Run executes all probes concurrently, each under its own timeout.
func Run(ctx context.Context, probes []Probe) Report {
	report := make(Report, len(probes))
	var wg sync.WaitGroup
	for i, p := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report[i] = run(ctx, p)
		}()
	}
	wg.Wait()
	return report
}

func run(ctx context.Context, p Probe) Result {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := p.Check(ctx)
	return Result{Probe: p, Error: err, Duration: time.Since(start)}
}

// Log writes one line per probe.
func (r Report) Log() {
	for _, res := range r {
		took := res.Duration.Round(time.Millisecond)
		switch {
		case res.Error == nil:
			slog.Info("Startup check passed", "check", res.Probe.Name, "took", took)
		case res.Probe.Critical:
			slog.Error("Startup check failed", "check", res.Probe.Name, "took", took, "error", res.Error)
		default:
			slog.Warn("Startup check failed", "check", res.Probe.Name, "took", took, "error", res.Error)
		}
	}
}

// Err joins the errors of failed critical probes.
func (r Report) Err() error {
	var errs []error
	for _, res := range r {
		if res.Error != nil && res.Probe.Critical {
			errs = append(errs, fmt.Errorf("%s: %w", res.Probe.Name, res.Error))
		}
	}
	return errors.Join(errs...)
}

// DirWritable checks that dir exists, creating it if needed, and accepts
// new files.
func DirWritable(dir string) CheckFunc {
	return func(context.Context) error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		f, err := os.CreateTemp(dir, ".probe-*")
		if err != nil {
			return err
		}
		name := f.Name()
		f.Close()
		return os.Remove(name)
	}
}

// ParentWritable is DirWritable for the directory holding path.
func ParentWritable(path string) CheckFunc {
	return DirWritable(filepath.Dir(path))
}
