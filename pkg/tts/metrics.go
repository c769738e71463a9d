package tts

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	synthesisTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_synthesis_total",
		Help: "Total TTS synthesis requests by provider and status",
	}, []string{"provider", "status"})

	synthesisDurationMS = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tts_synthesis_duration_ms",
		Help:    "Time spent synthesizing one line, in milliseconds",
		Buckets: prometheus.ExponentialBuckets(50, 1.6, 12),
	}, []string{"provider"})
)

// Observe records the outcome of one synthesis call started at start.
func Observe(provider string, start time.Time, err error) {
	status := "ok"
	switch {
	case IsFatalError(err):
		status = "fatal"
	case err != nil:
		status = "error"
	}
	synthesisTotal.WithLabelValues(provider, status).Inc()
	synthesisDurationMS.WithLabelValues(provider).Observe(float64(time.Since(start).Milliseconds()))
}
