package stage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	completions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stage_completions_total",
		Help: "Stages that signalled completion",
	}, []string{"stage"})

	unmountedEarly = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stage_unmounted_early_total",
		Help: "Stages unmounted before they completed",
	}, []string{"stage"})
)
