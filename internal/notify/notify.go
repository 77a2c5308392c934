// Package notify carries the best-effort side channels: chat
// notifications and ticket creation. Failures here are logged by the
// caller and never block incident processing.
package notify

import (
	"context"

	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/models"
)

// Notifier delivers an incident summary to a chat channel.
type Notifier interface {
	Notify(ctx context.Context, inc *models.Incident, message string) error
}

// Ticketer creates a tracking ticket for one action item.
type Ticketer interface {
	CreateTicket(ctx context.Context, item *models.ActionItem) (*models.TicketRef, error)
}
