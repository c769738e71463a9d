// Package store persists clips, run history and setting overrides.
package store

import (
	"context"
	"time"
)

// CacheStore is a key-value blob store.
type CacheStore interface {
	// GetCache returns the value for key. Read errors count as a miss.
	GetCache(ctx context.Context, key string) ([]byte, bool)
	SetCache(ctx context.Context, key string, val []byte) error
	// CountCache returns how many keys start with prefix.
	CountCache(ctx context.Context, prefix string) (int, error)
}

// Run is one pass through the authentication flow.
type Run struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	LastStage  string     `json:"last_stage"`
	Outcome    string     `json:"outcome"`
	Lines      int        `json:"lines"`
}

// Run outcomes.
const (
	OutcomeRunning    = "running"
	OutcomeRedirected = "redirected"
	OutcomeAborted    = "aborted"
)

// RunStore keeps the run history. SaveRun replaces any run with the same ID.
type RunStore interface {
	SaveRun(ctx context.Context, r *Run) error
	// GetRun returns nil, nil when id is unknown.
	GetRun(ctx context.Context, id string) (*Run, error)
	// ListRuns returns the newest runs first.
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
}

// StateStore holds setting overrides.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}

// Store is everything the application persists.
type Store interface {
	CacheStore
	RunStore
	StateStore

	Close() error
}
