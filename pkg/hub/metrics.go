package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the hub
type Metrics struct {
	// Connection metrics
	activeConnections prometheus.Gauge
	registeredUsers   prometheus.Gauge
	connectionsOpened prometheus.Counter
	connectionsClosed prometheus.Counter

	// Handshake metrics
	authSuccesses prometheus.Counter
	authFailures  prometheus.Counter

	// Delivery metrics
	messagesDelivered *prometheus.CounterVec // by outbound type
	deliveryFailures  prometheus.Counter
	fanout            *prometheus.HistogramVec // by scope: "tenant" or "all"
	fanoutDuration    *prometheus.HistogramVec

	// Liveness metrics
	heartbeatEvictions prometheus.Counter
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		activeConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "fitos_hub_active_connections",
				Help: "Current number of open websocket connections (including unauthenticated)",
			},
		),
		registeredUsers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "fitos_hub_registered_users",
				Help: "Current number of authenticated users in the registry",
			},
		),
		connectionsOpened: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fitos_hub_connections_opened_total",
				Help: "Total number of websocket connections accepted",
			},
		),
		connectionsClosed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fitos_hub_connections_closed_total",
				Help: "Total number of websocket connections torn down",
			},
		),
		authSuccesses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fitos_hub_auth_successes_total",
				Help: "Total number of successful handshakes",
			},
		),
		authFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fitos_hub_auth_failures_total",
				Help: "Total number of rejected handshakes",
			},
		),
		messagesDelivered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fitos_hub_messages_delivered_total",
				Help: "Total number of messages delivered to clients by type",
			},
			[]string{"type"},
		),
		deliveryFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fitos_hub_delivery_failures_total",
				Help: "Total number of failed transport writes",
			},
		),
		fanout: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fitos_hub_fanout",
				Help:    "Number of clients that received each fan-out message",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
			[]string{"scope"},
		),
		fanoutDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fitos_hub_fanout_duration_seconds",
				Help:    "Time taken to fan a message out to all recipients",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"scope"},
		),
		heartbeatEvictions: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fitos_hub_heartbeat_evictions_total",
				Help: "Total number of connections terminated for missing heartbeat probes",
			},
		),
	}
}

// RecordConnectionOpened updates connection counters for a new connection
func (m *Metrics) RecordConnectionOpened(openCount int) {
	m.connectionsOpened.Inc()
	m.activeConnections.Set(float64(openCount))
}

// RecordConnectionClosed updates connection counters for a torn-down connection
func (m *Metrics) RecordConnectionClosed(openCount int) {
	m.connectionsClosed.Inc()
	m.activeConnections.Set(float64(openCount))
}

// RecordRegisteredUsers updates the registry size gauge
func (m *Metrics) RecordRegisteredUsers(count int) {
	m.registeredUsers.Set(float64(count))
}

// RecordAuthSuccess increments the successful handshake counter
func (m *Metrics) RecordAuthSuccess() {
	m.authSuccesses.Inc()
}

// RecordAuthFailure increments the rejected handshake counter
func (m *Metrics) RecordAuthFailure() {
	m.authFailures.Inc()
}

// RecordMessageDelivered increments the delivery counter for a message type
func (m *Metrics) RecordMessageDelivered(messageType string) {
	m.messagesDelivered.WithLabelValues(messageType).Inc()
}

// RecordDeliveryFailure increments the failed write counter
func (m *Metrics) RecordDeliveryFailure() {
	m.deliveryFailures.Inc()
}

// RecordFanout records how many clients received a fan-out and how long it took
func (m *Metrics) RecordFanout(scope string, recipientCount int, durationSeconds float64) {
	m.fanout.WithLabelValues(scope).Observe(float64(recipientCount))
	m.fanoutDuration.WithLabelValues(scope).Observe(durationSeconds)
}

// RecordHeartbeatEviction increments the liveness eviction counter
func (m *Metrics) RecordHeartbeatEviction() {
	m.heartbeatEvictions.Inc()
}
