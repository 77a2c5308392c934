package models

import "fmt"

// NotFoundError indicates an unknown incident id.
type NotFoundError struct {
	IncidentID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("incident not found: %s", e.IncidentID)
}

// InvalidStateError indicates an operation attempted against an incident
// in the wrong lifecycle state.
type InvalidStateError struct {
	IncidentID string
	Status     Status
	Detail     string
}

func (e *InvalidStateError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("incident %s in state %s: %s", e.IncidentID, e.Status, e.Detail)
	}
	return fmt.Sprintf("incident %s is in invalid state %s for this operation", e.IncidentID, e.Status)
}
