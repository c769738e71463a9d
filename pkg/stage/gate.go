package stage

import "log/slog"

// Gate is a stage that completes when the user presses its button.
type Gate struct {
	name       string
	label      string
	onComplete func()
	mounted    bool
	done       bool
}

// NewGate creates a gate whose button shows label.
func NewGate(name, label string) *Gate {
	return &Gate{name: name, label: label}
}

func (g *Gate) Name() string  { return g.name }
func (g *Gate) Label() string { return g.label }

// Mount arms the gate.
func (g *Gate) Mount(onComplete func()) {
	if g.mounted {
		return
	}
	g.mounted = true
	g.onComplete = onComplete
}

// Press completes the gate. It reports whether this press did so.
func (g *Gate) Press() bool {
	if !g.mounted || g.done || g.onComplete == nil {
		return false
	}
	g.done = true
	cb := g.onComplete
	g.onComplete = nil
	completions.WithLabelValues(g.name).Inc()
	slog.Info("Stage: gate pressed", "stage", g.name)
	cb()
	return true
}

// Unmount disarms the gate.
func (g *Gate) Unmount() {
	g.onComplete = nil
}
