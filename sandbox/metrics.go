package sandbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sandboxesActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sandbox_stage_active",
			Help: "Number of sandboxes currently sitting in a given lifecycle stage.",
		},
		[]string{"stage"},
	)

	sandboxLoadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sandbox_loads_total",
			Help: "Total number of times a LoadedRuntime's handler table was populated by get-loaded.",
		},
	)

	sandboxUnloadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sandbox_unloads_total",
			Help: "Total number of times a HandlersLoaded sandbox was unloaded back to LoadedRuntime.",
		},
	)

	callsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandbox_calls_total",
			Help: "Total number of CallHandler invocations, labeled by their terminal Code (\"ok\" for success).",
		},
		[]string{"result"},
	)

	callDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sandbox_call_duration_seconds",
			Help:    "Wall-clock duration of CallHandler invocations, successful or not.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

const (
	stageProto          = "proto"
	stageLoadedRuntime  = "loaded-runtime"
	stageHandlersLoaded = "handlers-loaded"
)

func recordStageEnter(stage string) {
	sandboxesActive.WithLabelValues(stage).Inc()
}

func recordStageLeave(stage string) {
	sandboxesActive.WithLabelValues(stage).Dec()
}

func recordCall(result string) {
	callsTotal.WithLabelValues(result).Inc()
}
