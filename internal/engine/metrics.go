package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotline_scheduler_runs_total",
			Help: "Total number of scheduling runs by outcome.",
		},
		[]string{"outcome"},
	)

	runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slotline_scheduler_run_seconds",
			Help:    "Wall-clock duration of a scheduling run, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	sessionsPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotline_scheduler_sessions_total",
			Help: "Sessions processed by scheduling runs, by placement result.",
		},
		[]string{"result"},
	)

	conflictsDetected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "slotline_scheduler_conflicts_total",
			Help: "Pre-existing hardware overallocations detected by runs.",
		},
	)
)

func init() {
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(runDuration)
	prometheus.MustRegister(sessionsPlaced)
	prometheus.MustRegister(conflictsDetected)
}
