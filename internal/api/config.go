package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"authflow/pkg/config"
	"authflow/pkg/store"
)

// ConfigHandler handles runtime setting overrides.
type ConfigHandler struct {
	store   store.StateStore
	cfgProv config.Provider
	appCfg  *config.Config
	// applied is called after a successful update.
	applied func(ctx context.Context)
}

// NewConfigHandler creates a new ConfigHandler. applied may be nil.
func NewConfigHandler(st store.StateStore, cfg config.Provider, applied func(ctx context.Context)) *ConfigHandler {
	return &ConfigHandler{
		store:   st,
		cfgProv: cfg,
		appCfg:  cfg.AppConfig(),
		applied: applied,
	}
}

// ConfigResponse represents the config API response.
type ConfigResponse struct {
	TTSEngine   string  `json:"tts_engine"`
	Rate        float64 `json:"rate"`
	Pitch       float64 `json:"pitch"`
	Volume      float64 `json:"volume"`
	Voice       string  `json:"voice"`
	RedirectURL string  `json:"redirect_url"`
	Terminal    bool    `json:"terminal"`
}

// ConfigRequest represents the config API request for updates.
type ConfigRequest struct {
	Rate        *float64 `json:"rate,omitempty"` // Pointer to detect zero vs missing
	Pitch       *float64 `json:"pitch,omitempty"`
	Volume      *float64 `json:"volume,omitempty"`
	Voice       *string  `json:"voice,omitempty"`
	RedirectURL string   `json:"redirect_url,omitempty"`
}

// HandleConfig serves GET, PUT/POST and the CORS preflight on one route.
func (h *ConfigHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	hdr := w.Header()
	hdr.Set("Access-Control-Allow-Origin", "*")
	hdr.Set("Access-Control-Allow-Methods", "GET, PUT, POST, OPTIONS")
	hdr.Set("Access-Control-Allow-Headers", "Content-Type")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		h.HandleGetConfig(w, r)
	case http.MethodPut, http.MethodPost:
		h.HandleSetConfig(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleGetConfig returns the current configuration.
func (h *ConfigHandler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.getConfigResponse(r.Context()))
}

func (h *ConfigHandler) getConfigResponse(ctx context.Context) ConfigResponse {
	return ConfigResponse{
		TTSEngine:   h.appCfg.TTS.Engine,
		Rate:        h.cfgProv.NarrationRate(ctx),
		Pitch:       h.cfgProv.NarrationPitch(ctx),
		Volume:      h.cfgProv.NarrationVolume(ctx),
		Voice:       h.cfgProv.NarrationVoice(ctx),
		RedirectURL: h.cfgProv.RedirectURL(ctx),
		Terminal:    h.appCfg.Audio.Terminal,
	}
}

// HandleSetConfig validates and persists overrides, then returns the result.
func (h *ConfigHandler) HandleSetConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 16<<10))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	defer func() { _ = r.Body.Close() }()

	var req ConfigRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	updates, err := validateConfig(&req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	for key, val := range updates {
		if err := h.store.SetState(ctx, key, val); err != nil {
			slog.Error("Failed to save setting", "key", key, "error", err)
			http.Error(w, "failed to save settings", http.StatusInternalServerError)
			return
		}
	}
	if req.Voice != nil && *req.Voice == "" {
		if err := h.store.DeleteState(ctx, config.KeyNarrationVoice); err != nil {
			slog.Error("Failed to clear voice", "error", err)
		}
	}

	if len(updates) > 0 || req.Voice != nil {
		slog.Info("Settings updated", "count", len(updates))
		if h.applied != nil {
			h.applied(ctx)
		}
	}

	h.HandleGetConfig(w, r)
}

// validateConfig turns a request into state updates. Nothing is stored
// unless every field passes.
func validateConfig(req *ConfigRequest) (map[string]string, error) {
	updates := make(map[string]string)
	numeric := map[string]*float64{
		config.KeyNarrationRate:   req.Rate,
		config.KeyNarrationPitch:  req.Pitch,
		config.KeyNarrationVolume: req.Volume,
	}
	for key, val := range numeric {
		if val == nil {
			continue
		}
		if err := config.CheckRange(key, *val); err != nil {
			return nil, err
		}
		updates[key] = strconv.FormatFloat(*val, 'f', -1, 64)
	}
	if req.Voice != nil && *req.Voice != "" {
		updates[config.KeyNarrationVoice] = *req.Voice
	}
	if req.RedirectURL != "" {
		if err := config.CheckRedirectURL(req.RedirectURL); err != nil {
			return nil, err
		}
		updates[config.KeyRedirectURL] = req.RedirectURL
	}
	return updates, nil
}
