package api

import (
	"context"
	"sync"
	"testing"

	"authflow/pkg/flow"
	"authflow/pkg/loop"
	"authflow/pkg/narration"
	"authflow/pkg/store"
	"authflow/pkg/voice"
)

// startLoop runs a real loop for the duration of the test.
func startLoop(t *testing.T) loop.Loop {
	t.Helper()
	r := loop.NewRunner()
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	t.Cleanup(cancel)
	return r
}

type fakeFlow struct {
	mu      sync.Mutex
	snap    flow.Snapshot
	presses int
	events  chan flow.Event
	unsubs  int
}

func newFakeFlow() *fakeFlow {
	return &fakeFlow{
		snap:   flow.Snapshot{Stage: flow.Welcome, Greeting: flow.Greeting{Title: "WELCOME"}},
		events: make(chan flow.Event, 8),
	}
}

func (f *fakeFlow) Start() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap.RunID = "run-1"
	f.snap.Running = true
	f.snap.Stage = flow.Welcome
	f.snap.Label = "INITIALIZE SCAN"
	return "run-1"
}

func (f *fakeFlow) Press() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.snap.Running || f.snap.Label == "" {
		return false
	}
	f.presses++
	f.snap.Stage = flow.Face
	f.snap.Label = ""
	return true
}

func (f *fakeFlow) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap.Running = false
}

func (f *fakeFlow) Snapshot() flow.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeFlow) Subscribe(int) (<-chan flow.Event, func()) {
	return f.events, func() {
		f.mu.Lock()
		f.unsubs++
		f.mu.Unlock()
	}
}

type fakeRuns struct {
	runs []*store.Run
}

func (f *fakeRuns) SaveRun(context.Context, *store.Run) error { return nil }

func (f *fakeRuns) GetRun(_ context.Context, id string) (*store.Run, error) {
	for _, r := range f.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeRuns) ListRuns(_ context.Context, limit int) ([]*store.Run, error) {
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

type fakeEngine struct {
	mu     sync.Mutex
	lines  []string
	opts   []narration.Options
	status narration.Status
}

func (f *fakeEngine) Status() narration.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeEngine) Speak(text string, opts narration.Options) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, text)
	f.opts = append(f.opts, opts)
	f.status.Speaking = true
	f.status.Line = text
}

type fakeVoices []voice.Descriptor

func (f fakeVoices) Voices() []voice.Descriptor { return f }

type memState struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memState) GetState(_ context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *memState) SetState(_ context.Context, key, val string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string]string)
	}
	m.data[key] = val
	return nil
}

func (m *memState) DeleteState(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
