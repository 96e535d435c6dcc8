package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "todone",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	syncAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "todone",
			Name:      "sync_attempts_total",
			Help:      "Queue item replay attempts by result.",
		},
		[]string{"result"},
	)

	queuePending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "todone",
			Name:      "sync_queue_pending",
			Help:      "Queue items awaiting sync.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, syncAttempts, queuePending)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncSyncAttempt increments the replay counter ("success" or "failure").
func IncSyncAttempt(result string) {
	syncAttempts.WithLabelValues(result).Inc()
}

// SetQueuePending records the current pending queue depth.
func SetQueuePending(n int) {
	queuePending.Set(float64(n))
}
