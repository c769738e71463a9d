// Package api serves the flow page, its event stream and the JSON endpoints
// behind it.
package api

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"authflow/internal/ui"
	"authflow/pkg/version"
)

// Handlers groups the endpoint handlers. Nil handlers leave their routes
// unregistered.
type Handlers struct {
	Flow      *FlowHandler
	Stream    *StreamHandler
	Narration *NarrationHandler
	Config    *ConfigHandler
	Stats     *StatsHandler
}

func (h Handlers) routes() map[string]http.Handler {
	r := map[string]http.Handler{
		"GET /health":         http.HandlerFunc(handleHealth),
		"GET /api/version":    http.HandlerFunc(handleVersion),
		"GET /metrics":        promhttp.Handler(),
		"GET /api/log/latest": http.HandlerFunc(handleLatestLog),
		"GET /api/log/event":  http.HandlerFunc(handleLatestEvent),
		// unmatched API paths must not fall through to the page
		"/api/": http.HandlerFunc(handleUnknownAPI),
	}
	if h.Stats != nil {
		r["GET /api/stats"] = h.Stats
	}
	if f := h.Flow; f != nil {
		r["GET /api/flow"] = http.HandlerFunc(f.HandleSnapshot)
		r["POST /api/flow/start"] = http.HandlerFunc(f.HandleStart)
		r["POST /api/flow/press"] = http.HandlerFunc(f.HandlePress)
		r["POST /api/flow/stop"] = http.HandlerFunc(f.HandleStop)
		r["GET /api/flow/runs"] = http.HandlerFunc(f.HandleRuns)
		r["GET /api/flow/runs/{id}"] = http.HandlerFunc(f.HandleRun)
	}
	if h.Stream != nil {
		r["GET /api/flow/events"] = http.HandlerFunc(h.Stream.HandleEvents)
	}
	if n := h.Narration; n != nil {
		r["GET /api/narration/status"] = http.HandlerFunc(n.HandleStatus)
		r["GET /api/narration/voices"] = http.HandlerFunc(n.HandleVoices)
		r["POST /api/narration/speak"] = http.HandlerFunc(n.HandleSpeak)
	}
	if h.Config != nil {
		r["/api/config"] = http.HandlerFunc(h.Config.HandleConfig)
	}
	return r
}

// NewServer builds the HTTP server. POST /api/shutdown answers first and
// then calls shutdown, which may be nil.
func NewServer(addr string, h Handlers, shutdown func()) *http.Server {
	mux := http.NewServeMux()
	for pattern, handler := range h.routes() {
		mux.Handle(pattern, handler)
	}
	mux.Handle("POST /api/shutdown", shutdownHandler(shutdown))

	dist, err := fs.Sub(ui.DistFS, "dist")
	if err != nil {
		panic(fmt.Sprintf("embedded page assets missing: %v", err))
	}
	mux.Handle("/", spaHandler(dist))

	// No WriteTimeout: the event stream is long-lived and sets its own deadlines
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func shutdownHandler(shutdown func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Shutdown requested", "remote", r.RemoteAddr)
		writeJSON(w, http.StatusOK, map[string]string{"status": "shutting down"})
		if shutdown == nil {
			return
		}
		// let the response reach the client first
		time.AfterFunc(100*time.Millisecond, shutdown)
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Debug("Health response not written", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}

func handleUnknownAPI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such endpoint: " + r.Method + " " + r.URL.Path})
}
