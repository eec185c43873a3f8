package dispatch

import "github.com/prometheus/client_golang/prometheus"

var (
	taskOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clusterwork_task_outcomes_total",
			Help: "Total number of settled tasks by outcome kind.",
		},
		[]string{"kind"},
	)

	taskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clusterwork_task_duration_seconds",
			Help:    "Time from dispatch to settlement of a task, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	inflightTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clusterwork_inflight_tasks",
			Help: "Number of dispatched tasks that have not settled yet.",
		},
	)

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clusterwork_runs_total",
			Help: "Total number of work runs by final status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(taskOutcomesTotal)
	prometheus.MustRegister(taskDuration)
	prometheus.MustRegister(inflightTasks)
	prometheus.MustRegister(runsTotal)

	for _, kind := range []string{KindSuccess, KindTimeout, KindRouting, KindRemote, KindCanceled, KindUnknown} {
		taskOutcomesTotal.WithLabelValues(kind)
	}
}
