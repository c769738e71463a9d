package flow

import (
	"time"

	"authflow/pkg/stage"
)

// EventType tags an Event.
type EventType string

const (
	EventStage    EventType = "stage"
	EventState    EventType = "state"
	EventLine     EventType = "line"
	EventRedirect EventType = "redirect"
	EventStopped  EventType = "stopped"
)

// Event is pushed to subscribers as the flow moves.
type Event struct {
	Type  EventType    `json:"type"`
	RunID string       `json:"run_id"`
	Stage Stage        `json:"stage"`
	State *stage.State `json:"state,omitempty"`
	Label string       `json:"label,omitempty"`
	Line  string       `json:"line,omitempty"`
	URL   string       `json:"url,omitempty"`
	At    time.Time    `json:"at"`
}

// Greeting is shown on the launch screen.
type Greeting struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

// Snapshot is the controller's state for late joiners.
type Snapshot struct {
	RunID    string       `json:"run_id,omitempty"`
	Running  bool         `json:"running"`
	Stage    Stage        `json:"stage"`
	Index    int          `json:"index"`
	State    *stage.State `json:"state,omitempty"`
	Label    string       `json:"label,omitempty"`
	Line     string       `json:"line,omitempty"`
	Greeting Greeting     `json:"greeting"`
	Redirect string       `json:"redirect,omitempty"`
}
