package models

import (
	"fmt"
	"strings"
	"time"
)

// Severity is the incident severity classification.
// SEV1 is highest impact, SEV4 is lowest.
type Severity string

const (
	SeveritySEV1 Severity = "SEV1"
	SeveritySEV2 Severity = "SEV2"
	SeveritySEV3 Severity = "SEV3"
	SeveritySEV4 Severity = "SEV4"
)

// ParseSeverity maps provider or caller text onto the closed severity enum.
// Anything outside SEV1..SEV4 is an error, never a default.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToUpper(strings.TrimSpace(s))) {
	case SeveritySEV1:
		return SeveritySEV1, nil
	case SeveritySEV2:
		return SeveritySEV2, nil
	case SeveritySEV3:
		return SeveritySEV3, nil
	case SeveritySEV4:
		return SeveritySEV4, nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// Status tracks the incident's position in its lifecycle.
type Status string

const (
	StatusOpen          Status = "OPEN"
	StatusInvestigating Status = "INVESTIGATING"
	StatusResolved      Status = "RESOLVED"
	StatusClosed        Status = "CLOSED"
)

// validTransitions defines the linear lifecycle. No transition skips a
// state and none go backward.
var validTransitions = map[Status][]Status{
	StatusOpen:          {StatusInvestigating},
	StatusInvestigating: {StatusResolved},
	StatusResolved:      {StatusClosed},
	StatusClosed:        {},
}

// ValidateTransition checks whether from → to is a legal lifecycle step.
func ValidateTransition(from, to Status) error {
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("invalid current status: %s", from)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("invalid status transition: %s → %s", from, to)
}

// Priority is the action item priority level.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// ParsePriority maps text onto the closed priority enum.
func ParsePriority(s string) (Priority, error) {
	switch Priority(strings.ToUpper(strings.TrimSpace(s))) {
	case PriorityHigh:
		return PriorityHigh, nil
	case PriorityMedium:
		return PriorityMedium, nil
	case PriorityLow:
		return PriorityLow, nil
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

// Category buckets action items by the kind of follow-up work.
type Category string

const (
	CategoryMonitoring    Category = "monitoring"
	CategoryProcess       Category = "process"
	CategoryDocumentation Category = "documentation"
	CategoryTechnical     Category = "technical"
	CategoryOther         Category = "other"
)

// ParseCategory maps text onto the closed category enum.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryMonitoring:
		return CategoryMonitoring, nil
	case CategoryProcess:
		return CategoryProcess, nil
	case CategoryDocumentation:
		return CategoryDocumentation, nil
	case CategoryTechnical:
		return CategoryTechnical, nil
	case CategoryOther:
		return CategoryOther, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Alert is the raw monitoring alert that triggers incident processing.
type Alert struct {
	AlertID     string   `json:"alert_id,omitempty"`
	Severity    Severity `json:"severity"`
	Service     string   `json:"service"`
	Message     string   `json:"message"`
	Metric      string   `json:"metric,omitempty"`
	Threshold   *float64 `json:"threshold,omitempty"`
	Current     *float64 `json:"current,omitempty"`
	Environment string   `json:"environment,omitempty"`
	RunbookURL  string   `json:"runbook_url,omitempty"`
}

// Validate checks that the alert carries the fields incident creation needs.
func (a Alert) Validate() error {
	if _, err := ParseSeverity(string(a.Severity)); err != nil {
		return err
	}
	if strings.TrimSpace(a.Service) == "" {
		return fmt.Errorf("alert service is required")
	}
	if strings.TrimSpace(a.Message) == "" {
		return fmt.Errorf("alert message is required")
	}
	return nil
}

// TimelineEvent is a discrete timestamped entry in the incident timeline.
type TimelineEvent struct {
	OccurredAt  time.Time `json:"occurred_at"`
	Source      string    `json:"source"` // "alert", "triage", "report", "postmortem"
	Description string    `json:"description"`
}

// TicketRef points at an externally created ticket for an action item.
type TicketRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ActionItem is a follow-up task extracted from a postmortem.
type ActionItem struct {
	ID              string     `json:"id"`
	IncidentID      string     `json:"incident_id"`
	Description     string     `json:"description"`
	Priority        Priority   `json:"priority"`
	Category        Category   `json:"category"`
	EstimatedEffort string     `json:"estimated_effort"`
	Ticket          *TicketRef `json:"ticket,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Incident is the tracked production issue. It is owned by the
// orchestrator for the duration of its lifecycle and mutated only
// through stage outputs merged back in.
type Incident struct {
	ID               string          `json:"incident_id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Severity         Severity        `json:"severity"`
	Status           Status          `json:"status"`
	AffectedServices []string        `json:"affected_services"`
	Symptoms         []string        `json:"symptoms,omitempty"`
	SuggestedActions []string        `json:"suggested_actions,omitempty"`
	Alert            Alert           `json:"alert"`
	Timeline         []TimelineEvent `json:"timeline,omitempty"`

	// Generated artifacts.
	Report         string       `json:"report,omitempty"`
	Postmortem     string       `json:"postmortem,omitempty"`
	LessonsLearned []string     `json:"lessons_learned,omitempty"`
	ActionItems    []ActionItem `json:"action_items,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// TransitionTo advances the incident status, rejecting backward or
// state-skipping moves.
func (i *Incident) TransitionTo(to Status) error {
	if err := ValidateTransition(i.Status, to); err != nil {
		return &InvalidStateError{IncidentID: i.ID, Status: i.Status, Detail: err.Error()}
	}
	i.Status = to
	return nil
}

// AddTimelineEvent appends a timestamped entry to the incident timeline.
func (i *Incident) AddTimelineEvent(source, description string) {
	i.Timeline = append(i.Timeline, TimelineEvent{
		OccurredAt:  time.Now().UTC(),
		Source:      source,
		Description: description,
	})
}

// SimilarityResult is one semantically similar past incident. Derived
// from a vector query, never persisted.
type SimilarityResult struct {
	IncidentID string   `json:"incident_id"`
	Title      string   `json:"title"`
	Severity   Severity `json:"severity"`
	Services   []string `json:"services,omitempty"`
	Score      float64  `json:"similarity_score"` // cosine, clamped to [0,1]
	Snippet    string   `json:"snippet"`
}

// PostmortemResult is the aggregate outcome of postmortem generation.
type PostmortemResult struct {
	IncidentID       string             `json:"incident_id"`
	Postmortem       string             `json:"postmortem"`
	LessonsLearned   []string           `json:"lessons_learned"`
	ActionItems      []ActionItem       `json:"action_items"`
	SimilarIncidents []SimilarityResult `json:"similar_incidents,omitempty"`
}
