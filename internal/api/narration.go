package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"authflow/pkg/loop"
	"authflow/pkg/narration"
	"authflow/pkg/voice"
)

// NarrationEngine is the part of the narration engine the API uses.
// Speak must run on the loop.
type NarrationEngine interface {
	Status() narration.Status
	Speak(text string, opts narration.Options)
}

// VoiceLister returns the current voice snapshot.
type VoiceLister interface {
	Voices() []voice.Descriptor
}

// NarrationHandler handles narration endpoints.
type NarrationHandler struct {
	l      loop.Loop
	engine NarrationEngine
	voices VoiceLister
	// busy reports whether a flow run owns the narrator.
	busy func() bool
}

// NewNarrationHandler creates a new NarrationHandler.
func NewNarrationHandler(l loop.Loop, engine NarrationEngine, voices VoiceLister, busy func() bool) *NarrationHandler {
	return &NarrationHandler{l: l, engine: engine, voices: voices, busy: busy}
}

// SpeakRequest is a voice preview request.
type SpeakRequest struct {
	Text   string  `json:"text"`
	Voice  string  `json:"voice,omitempty"`
	Rate   float64 `json:"rate,omitempty"`
	Pitch  float64 `json:"pitch,omitempty"`
	Volume float64 `json:"volume,omitempty"`
}

// HandleStatus handles GET /api/narration/status
func (h *NarrationHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Status())
}

// HandleVoices handles GET /api/narration/voices
func (h *NarrationHandler) HandleVoices(w http.ResponseWriter, r *http.Request) {
	vs := h.voices.Voices()
	if vs == nil {
		vs = []voice.Descriptor{}
	}
	writeJSON(w, http.StatusOK, vs)
}

// HandleSpeak handles POST /api/narration/speak. A preview would supersede
// a stage line, so it is refused while a run is active.
func (h *NarrationHandler) HandleSpeak(w http.ResponseWriter, r *http.Request) {
	var req SpeakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	if len(req.Text) > 500 {
		http.Error(w, "text too long", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), loopTimeout)
	defer cancel()

	accepted := false
	err := loop.Await(ctx, h.l, func() {
		if h.busy != nil && h.busy() {
			return
		}
		accepted = true
		h.engine.Speak(req.Text, narration.Options{
			Voice:  req.Voice,
			Rate:   req.Rate,
			Pitch:  req.Pitch,
			Volume: req.Volume,
		})
	})
	if err != nil {
		http.Error(w, "narrator busy", http.StatusServiceUnavailable)
		return
	}
	if !accepted {
		http.Error(w, "a flow run is active", http.StatusConflict)
		return
	}

	slog.Info("API: voice preview requested", "voice", req.Voice)
	writeJSON(w, http.StatusAccepted, h.engine.Status())
}
