package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authflow/pkg/flow"
	"authflow/pkg/store"
)

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestFlowHandler_StartPress(t *testing.T) {
	ff := newFakeFlow()
	srv := NewServer("", Handlers{Flow: NewFlowHandler(startLoop(t), ff, nil)}, nil)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/flow/start", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	start := decode[ActionResponse](t, rec)
	assert.True(t, start.OK)
	assert.Equal(t, "run-1", start.RunID)
	assert.True(t, start.Snapshot.Running)
	assert.Equal(t, "INITIALIZE SCAN", start.Snapshot.Label)

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/flow/press", nil))
	press := decode[ActionResponse](t, rec)
	assert.True(t, press.OK)
	assert.Equal(t, flow.Face, press.Snapshot.Stage)

	// A second press finds no gate.
	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/flow/press", nil))
	assert.False(t, decode[ActionResponse](t, rec).OK)
	assert.Equal(t, 1, ff.presses)
}

func TestFlowHandler_Stop(t *testing.T) {
	ff := newFakeFlow()
	srv := NewServer("", Handlers{Flow: NewFlowHandler(startLoop(t), ff, nil)}, nil)
	ff.Start()

	// Stages advance only on their own completion; there is no route for it.
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/flow/advance", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, flow.Welcome, ff.Snapshot().Stage)

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/flow/stop", nil))
	assert.False(t, decode[ActionResponse](t, rec).Snapshot.Running)

	// Wrong method lands on the unknown endpoint reply
	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/flow/stop", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFlowHandler_Snapshot(t *testing.T) {
	ff := newFakeFlow()
	srv := NewServer("", Handlers{Flow: NewFlowHandler(startLoop(t), ff, nil)}, nil)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/flow", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[flow.Snapshot](t, rec)
	assert.Equal(t, flow.Welcome, snap.Stage)
	assert.Equal(t, "WELCOME", snap.Greeting.Title)
}

func TestFlowHandler_Runs(t *testing.T) {
	done := time.Date(2026, 3, 1, 10, 1, 0, 0, time.UTC)
	runs := &fakeRuns{runs: []*store.Run{
		{ID: "b", StartedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), FinishedAt: &done, LastStage: "complete", Outcome: store.OutcomeRedirected, Lines: 14},
		{ID: "a", StartedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), LastStage: "face", Outcome: store.OutcomeAborted},
	}}
	srv := NewServer("", Handlers{Flow: NewFlowHandler(startLoop(t), newFakeFlow(), runs)}, nil)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/flow/runs?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]store.Run](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, 14, list[0].Lines)

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/flow/runs?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/flow/runs/a", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.OutcomeAborted, decode[store.Run](t, rec).Outcome)

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/flow/runs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFlowHandler_RunsWithoutStore(t *testing.T) {
	srv := NewServer("", Handlers{Flow: NewFlowHandler(startLoop(t), newFakeFlow(), nil)}, nil)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/flow/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}
