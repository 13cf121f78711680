package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpRequestsTotal      *prometheus.CounterVec
	httpLatencySeconds     *prometheus.HistogramVec
	chatConnectionsActive  prometheus.Gauge
	chatOnlineUsers        prometheus.Gauge
	chatEventsEmittedTotal *prometheus.CounterVec
	chatDispatchFailures   *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the chat service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		chatConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_connections_active",
			Help: "Number of live websocket connections.",
		})

		chatOnlineUsers = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_online_users",
			Help: "Number of users with a bound connection.",
		})

		chatEventsEmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_events_emitted_total",
			Help: "Total number of socket emissions by event name.",
		}, []string{"event"})

		chatDispatchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_dispatch_failures_total",
			Help: "Total number of dispatch operations aborted by a persistence error.",
		}, []string{"operation"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			chatConnectionsActive,
			chatOnlineUsers,
			chatEventsEmittedTotal,
			chatDispatchFailures,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// ChatConnectionsActive exposes the live websocket connection gauge.
func ChatConnectionsActive() prometheus.Gauge {
	RegisterMetrics()
	return chatConnectionsActive
}

// ChatOnlineUsers exposes the presence gauge.
func ChatOnlineUsers() prometheus.Gauge {
	RegisterMetrics()
	return chatOnlineUsers
}

// ChatEventsEmitted exposes the emission counter.
func ChatEventsEmitted() *prometheus.CounterVec {
	RegisterMetrics()
	return chatEventsEmittedTotal
}

// ChatDispatchFailures exposes the dispatch failure counter.
func ChatDispatchFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return chatDispatchFailures
}
