package coach

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	opChat     = "chat"
	opFeedback = "feedback"
)

var (
	// backendCalls counts backend calls by operation and outcome
	// (ok|timeout|status|decode|transport).
	backendCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_backend_requests_total",
			Help: "Total number of calls to the coaching backend.",
		},
		[]string{"operation", "outcome"},
	)

	// backendLat records call duration. Buckets stretch to several minutes
	// because chat turns may run multi-step planning.
	backendLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coach_backend_request_duration_seconds",
			Help:    "Duration of coaching backend calls in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(backendCalls, backendLat)
}

func observeCall(op string, start time.Time, err error) {
	backendLat.WithLabelValues(op).Observe(time.Since(start).Seconds())
	backendCalls.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrStatus):
		return "status"
	case errors.Is(err, ErrDecode):
		return "decode"
	default:
		return "transport"
	}
}
