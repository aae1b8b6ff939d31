package session

import "github.com/prometheus/client_golang/prometheus"

const (
	resultApplied   = "applied"
	resultFailed    = "failed"
	resultDiscarded = "discarded"
	resultDropped   = "dropped"
)

// turnsTotal counts settled turns by kind and result.
var turnsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coach_session_turns_total",
		Help: "Total number of session turns by kind and result.",
	},
	[]string{"kind", "result"},
)

func init() {
	prometheus.MustRegister(turnsTotal)
}
