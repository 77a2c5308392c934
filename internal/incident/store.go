// Package incident persists incidents, their timelines, and their
// action items.
package incident

import (
	"context"

	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/models"
)

// Store is the durable incident repository.
type Store interface {
	// SaveIncident upserts the incident together with its timeline and
	// action items.
	SaveIncident(ctx context.Context, inc *models.Incident) error

	// GetIncident returns the full incident or *models.NotFoundError.
	GetIncident(ctx context.Context, id string) (*models.Incident, error)

	// ListIncidents returns incidents newest first.
	ListIncidents(ctx context.Context, limit, offset int) ([]*models.Incident, error)

	// NextSequence hands out the next per-day incident number for ID
	// generation, starting at 1 for an unseen dateKey.
	NextSequence(ctx context.Context, dateKey string) (int, error)

	Ping(ctx context.Context) error
	Close() error
}
