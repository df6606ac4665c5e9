// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// ConversationsCreated counts conversations inserted by find-or-create.
	ConversationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_conversations_created_total",
			Help: "Conversations created by find-or-create",
		},
	)

	// MessagesTotal counts persisted messages.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Messages persisted, by sender role and ingestion transport",
		},
		[]string{"role", "transport"},
	)

	// MessagesRejected counts send attempts that failed before persistence.
	MessagesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_rejected_total",
			Help: "Send attempts rejected, by error kind and transport",
		},
		[]string{"kind", "transport"},
	)

	// MessagesMarkedRead counts messages flipped to read.
	MessagesMarkedRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_marked_read_total",
			Help: "Messages marked as read",
		},
	)

	// SummaryUpdateFailures counts messages whose conversation summary could not be updated.
	SummaryUpdateFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_summary_update_failures_total",
			Help: "Conversation summary updates that failed after a successful append",
		},
	)

	// RealtimeConnections tracks open realtime connections.
	RealtimeConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_realtime_connections_active",
			Help: "Open realtime connections",
		},
		[]string{"transport"},
	)

	// RoomsActive tracks rooms with at least one member.
	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_rooms_active",
			Help: "Rooms with at least one member",
		},
	)

	// BroadcastEvents counts fan-out outcomes per event.
	BroadcastEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_broadcast_events_total",
			Help: "Events fanned out to room members, by event and outcome",
		},
		[]string{"event", "outcome"},
	)

	// EventLogPublishFailures counts events that could not be written to the event log.
	EventLogPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_event_log_publish_failures_total",
			Help: "Event log publish failures",
		},
		[]string{"event"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, route, status string, duration float64) {
	RequestDuration.WithLabelValues(method, route, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, route, status).Inc()
}

// RecordDelivery records the outcome of one fan-out.
func RecordDelivery(event string, delivered, dropped int) {
	BroadcastEvents.WithLabelValues(event, "delivered").Add(float64(delivered))
	BroadcastEvents.WithLabelValues(event, "dropped").Add(float64(dropped))
}

// ConnectionOpened increments the active connection count for transport.
func ConnectionOpened(transport string) {
	RealtimeConnections.WithLabelValues(transport).Inc()
}

// ConnectionClosed decrements the active connection count for transport.
func ConnectionClosed(transport string) {
	RealtimeConnections.WithLabelValues(transport).Dec()
}
