// Package stage runs the per-stage choreography of timers and narration
// lines as an explicit list of steps.
package stage

import (
	"authflow/pkg/narration"
)

// Phase is a stage's coarse progress.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseActive    Phase = "active"
	PhaseFinishing Phase = "finishing"
	PhaseDone      Phase = "done"
)

// State is the per-stage view the page renders.
type State struct {
	Phase     Phase  `json:"phase"`
	Countdown int    `json:"countdown"`
	Progress  int    `json:"progress"`
	Scanning  bool   `json:"scanning"`
	Complete  bool   `json:"complete"`
	Flash     bool   `json:"flash"`
	Line      string `json:"line,omitempty"`
}

// Narrator is the slice of narration.Engine a stage needs.
type Narrator interface {
	Speak(text string, opts narration.Options)
	Cancel()
	IsSupported() bool
}

var _ Narrator = (*narration.Engine)(nil)
