package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var terminationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "monitor_terminations_total",
		Help: "Total number of guest calls a monitor terminated, labeled by the monitor that fired.",
	},
	[]string{"monitor_type"},
)

// RecordTermination increments the termination counter for the monitor
// named name. Callers also log a warning alongside this; RecordTermination
// only ever touches metrics.
func RecordTermination(name string) {
	terminationsTotal.WithLabelValues(name).Inc()
}
