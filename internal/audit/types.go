package audit

import "time"

// EventType represents the type of audit event
type EventType string

const (
	// Incident lifecycle events
	EventIncidentCreated     EventType = "incident.created"
	EventIncidentResolved    EventType = "incident.resolved"
	EventPostmortemGenerated EventType = "incident.postmortem_generated"
	EventIncidentIndexed     EventType = "incident.indexed"
	EventIncidentIndexFailed EventType = "incident.index_failed"

	// Stage events
	EventStageCompleted EventType = "stage.completed"
	EventStageFailed    EventType = "stage.failed"

	// Side-channel events
	EventNotificationSent   EventType = "notification.sent"
	EventNotificationFailed EventType = "notification.failed"
	EventTicketCreated      EventType = "ticket.created"
	EventTicketFailed       EventType = "ticket.failed"

	// Configuration events
	EventConfigLoaded  EventType = "config.loaded"
	EventConfigChanged EventType = "config.changed"

	// System events
	EventServerStarted  EventType = "system.server_started"
	EventServerShutdown EventType = "system.server_shutdown"
)

// Result represents the outcome of an audited action
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultPending Result = "pending"
)

// Event represents a single audit event
type Event struct {
	// Core fields
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id"`
	EventType     EventType `json:"event_type"`
	Result        Result    `json:"result"`

	// Incident context
	IncidentID string `json:"incident_id,omitempty"`
	Stage      string `json:"stage,omitempty"`
	Severity   string `json:"severity,omitempty"`

	// Event details
	Description string                 `json:"description,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`

	// Error information
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`

	// Duration tracking
	DurationMs int64 `json:"duration_ms,omitempty"`
}

// NewEvent creates a new audit event with default values
func NewEvent(eventType EventType) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Result:    ResultPending,
		Metadata:  make(map[string]interface{}),
	}
}

// WithCorrelationID sets the correlation ID for event tracking
func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

// WithIncident sets the incident this event belongs to
func (e *Event) WithIncident(incidentID string) *Event {
	e.IncidentID = incidentID
	return e
}

// WithStage sets the pipeline stage that produced the event
func (e *Event) WithStage(stage string) *Event {
	e.Stage = stage
	return e
}

// WithSeverity sets the incident severity
func (e *Event) WithSeverity(severity string) *Event {
	e.Severity = severity
	return e
}

// WithDescription sets a human-readable description
func (e *Event) WithDescription(desc string) *Event {
	e.Description = desc
	return e
}

// WithResult sets the result of the event
func (e *Event) WithResult(result Result) *Event {
	e.Result = result
	return e
}

// WithError sets error information
func (e *Event) WithError(err error, code string) *Event {
	if err != nil {
		e.Error = err.Error()
		e.ErrorCode = code
		e.Result = ResultFailure
	}
	return e
}

// WithDuration sets the duration in milliseconds
func (e *Event) WithDuration(duration time.Duration) *Event {
	e.DurationMs = duration.Milliseconds()
	return e
}

// WithMetadata adds metadata to the event
func (e *Event) WithMetadata(key string, value interface{}) *Event {
	e.Metadata[key] = value
	return e
}
