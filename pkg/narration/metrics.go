package narration

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeCompleted  = "completed"
	outcomeFailed     = "failed"
	outcomeSuperseded = "superseded"
	outcomeCanceled   = "canceled"
	outcomeTimeout    = "timeout"
)

var (
	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narration_sessions_total",
		Help: "Narration sessions by outcome",
	}, []string{"outcome"})

	sessionDurationMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "narration_session_duration_ms",
		Help:    "Time from request to callback for completed or failed lines",
		Buckets: prometheus.ExponentialBuckets(100, 1.8, 10),
	})

	staleCallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "narration_stale_callbacks_total",
		Help: "Capability callbacks dropped because their session was no longer current",
	})
)

func observe(outcome string, started time.Time) {
	sessionsTotal.WithLabelValues(outcome).Inc()
	if outcome == outcomeCompleted || outcome == outcomeFailed || outcome == outcomeTimeout {
		sessionDurationMS.Observe(float64(time.Since(started).Milliseconds()))
	}
}
