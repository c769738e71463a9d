package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"authflow/pkg/flow"
	"authflow/pkg/loop"
	"authflow/pkg/store"
)

// FlowController is the part of the flow controller the API drives.
// Mutating methods must run on the loop.
type FlowController interface {
	Start() string
	Press() bool
	Stop()
	Snapshot() flow.Snapshot
	Subscribe(buffer int) (<-chan flow.Event, func())
}

// FlowHandler handles flow control endpoints.
type FlowHandler struct {
	l    loop.Loop
	ctrl FlowController
	runs store.RunStore
}

// NewFlowHandler creates a new FlowHandler. runs may be nil.
func NewFlowHandler(l loop.Loop, ctrl FlowController, runs store.RunStore) *FlowHandler {
	return &FlowHandler{l: l, ctrl: ctrl, runs: runs}
}

// ActionResponse reports the outcome of a flow action.
type ActionResponse struct {
	OK       bool          `json:"ok"`
	RunID    string        `json:"run_id,omitempty"`
	Snapshot flow.Snapshot `json:"snapshot"`
}

const loopTimeout = 2 * time.Second

// do runs fn on the loop and replies with the resulting snapshot.
func (h *FlowHandler) do(w http.ResponseWriter, r *http.Request, fn func() ActionResponse) {
	ctx, cancel := context.WithTimeout(r.Context(), loopTimeout)
	defer cancel()

	var resp ActionResponse
	if err := loop.Await(ctx, h.l, func() { resp = fn() }); err != nil {
		slog.Error("API: flow action timed out", "path", r.URL.Path, "error", err)
		http.Error(w, "flow busy", http.StatusServiceUnavailable)
		return
	}
	resp.Snapshot = h.ctrl.Snapshot()
	writeJSON(w, http.StatusOK, resp)
}

// HandleSnapshot handles GET /api/flow
func (h *FlowHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

// HandleStart handles POST /api/flow/start
func (h *FlowHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.do(w, r, func() ActionResponse {
		id := h.ctrl.Start()
		return ActionResponse{OK: true, RunID: id}
	})
}

// HandlePress handles POST /api/flow/press
func (h *FlowHandler) HandlePress(w http.ResponseWriter, r *http.Request) {
	h.do(w, r, func() ActionResponse {
		return ActionResponse{OK: h.ctrl.Press()}
	})
}

// HandleStop handles POST /api/flow/stop
func (h *FlowHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.do(w, r, func() ActionResponse {
		h.ctrl.Stop()
		return ActionResponse{OK: true}
	})
}

// HandleRuns handles GET /api/flow/runs?limit=N
func (h *FlowHandler) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeJSON(w, http.StatusOK, []*store.Run{})
		return
	}
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 500 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		slog.Error("API: failed to list runs", "error", err)
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// HandleRun handles GET /api/flow/runs/{id}
func (h *FlowHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		http.NotFound(w, r)
		return
	}
	run, err := h.runs.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		slog.Error("API: failed to load run", "error", err)
		http.Error(w, "failed to load run", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("API: failed to encode response", "error", err)
	}
}
