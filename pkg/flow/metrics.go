package flow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flow_stage_mounts_total",
		Help: "Stage mounts by stage",
	}, []string{"stage"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flow_runs_total",
		Help: "Flow runs by outcome",
	}, []string{"outcome"})

	droppedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flow_events_dropped_total",
		Help: "Events not delivered to a full subscriber buffer",
	})
)
