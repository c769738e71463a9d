package api

import (
	"context"
	"log/slog"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// ClipCounter reports how many synthesized clips are cached.
type ClipCounter interface {
	Count(ctx context.Context) (int, error)
}

// StatsHandler serves GET /api/stats.
type StatsHandler struct {
	clips   ClipCounter
	engine  string
	started time.Time
	peakSys atomic.Uint64
}

// NewStatsHandler returns a stats handler. clips may be nil.
func NewStatsHandler(clips ClipCounter, engine string) *StatsHandler {
	return &StatsHandler{clips: clips, engine: engine, started: time.Now()}
}

// ProcessStats describes the server process. Memory is in MiB.
type ProcessStats struct {
	MemoryMB     uint64 `json:"memory_mb"`
	PeakMemoryMB uint64 `json:"peak_memory_mb"`
	HeapMB       uint64 `json:"heap_mb"`
	Goroutines   int    `json:"goroutines"`
	GCCycles     uint32 `json:"gc_cycles"`
}

// StatsResponse is the GET /api/stats body.
type StatsResponse struct {
	Process     ProcessStats `json:"process"`
	Uptime      string       `json:"uptime"`
	TTSEngine   string       `json:"tts_engine"`
	CachedClips int          `json:"cached_clips"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	peak := h.peakSys.Load()
	for ms.Sys > peak && !h.peakSys.CompareAndSwap(peak, ms.Sys) {
		peak = h.peakSys.Load()
	}
	peak = max(peak, ms.Sys)

	resp := StatsResponse{
		Process: ProcessStats{
			MemoryMB:     ms.Sys >> 20,
			PeakMemoryMB: peak >> 20,
			HeapMB:       ms.HeapAlloc >> 20,
			Goroutines:   runtime.NumGoroutine(),
			GCCycles:     ms.NumGC,
		},
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		TTSEngine: h.engine,
	}

	if h.clips != nil {
		n, err := h.clips.Count(r.Context())
		if err != nil {
			slog.Warn("Cannot count cached clips", "error", err)
		}
		resp.CachedClips = n
	}

	writeJSON(w, http.StatusOK, resp)
}
