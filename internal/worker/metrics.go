package worker

import "github.com/prometheus/client_golang/prometheus"

const (
	resultCompleted = "completed"
	resultFailed    = "failed"
)

var workerTasksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "clusterwork_worker_tasks_total",
		Help: "Total number of tasks executed by this worker node.",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(workerTasksTotal)
}
