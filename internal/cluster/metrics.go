package cluster

import "github.com/prometheus/client_golang/prometheus"

// Result labels for routed calls.
const (
	resultOK       = "ok"
	resultError    = "error"
	resultNoRoutee = "no_routee"
)

var (
	routedCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clusterwork_routed_calls_total",
			Help: "Total number of calls routed to cluster members.",
		},
		[]string{"member", "result"},
	)

	routeesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clusterwork_routees",
			Help: "Number of members currently eligible for routing.",
		},
	)
)

func init() {
	prometheus.MustRegister(routedCallsTotal)
	prometheus.MustRegister(routeesGauge)
}
