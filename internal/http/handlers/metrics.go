package handlers

import "github.com/prometheus/client_golang/prometheus"

var (
	// streamConns gauges open transcript WebSocket streams.
	streamConns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "coach_stream_connections",
			Help: "Open transcript WebSocket streams.",
		},
	)

	// streamEvents counts events written to streams by kind.
	streamEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_stream_events_total",
			Help: "Transcript events delivered over WebSocket streams.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(streamConns, streamEvents)
}
