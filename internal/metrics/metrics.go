package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Incident pipeline metrics for production monitoring
var (
	// Incident metrics
	IncidentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incidentbot_incidents_total",
			Help: "Total number of incidents processed",
		},
		[]string{"severity", "status"},
	)

	PostmortemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incidentbot_postmortems_total",
			Help: "Total number of postmortems generated",
		},
		[]string{"status"},
	)

	// Stage metrics
	StageRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incidentbot_stage_runs_total",
			Help: "Total number of pipeline stage executions",
		},
		[]string{"stage", "status"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "incidentbot_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1min
		},
		[]string{"stage"},
	)

	StageRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incidentbot_stage_retries_total",
			Help: "Total number of stage retries after malformed model output",
		},
		[]string{"stage"},
	)

	// LLM metrics
	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incidentbot_llm_requests_total",
			Help: "Total number of LLM API requests",
		},
		[]string{"provider", "op", "status"},
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "incidentbot_llm_request_duration_seconds",
			Help:    "LLM request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"provider", "op"},
	)

	// Knowledge base metrics
	KnowledgeIndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "incidentbot_knowledge_index_size",
			Help: "Current number of incidents in the knowledge index",
		},
	)

	KnowledgeSearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incidentbot_knowledge_searches_total",
			Help: "Total number of similarity searches",
		},
		[]string{"status"},
	)

	KnowledgeIndexFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "incidentbot_knowledge_index_failures_total",
			Help: "Total number of failed incident indexing attempts",
		},
	)

	// Side-channel metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incidentbot_notifications_total",
			Help: "Total number of notification dispatches",
		},
		[]string{"channel", "status"},
	)

	TicketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incidentbot_tickets_total",
			Help: "Total number of ticket creation attempts",
		},
		[]string{"status"},
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "incidentbot_websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WebSocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incidentbot_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: inbound/outbound
	)
)
