package audit

import (
	"context"
	"time"
)

// nopLogger discards every event. Used in tests and when audit logging
// is disabled.
type nopLogger struct{}

// NewNopLogger returns a Logger that drops all events.
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) Log(context.Context, *Event) error { return nil }

func (nopLogger) LogIncidentCreated(context.Context, string, string) error { return nil }
func (nopLogger) LogIncidentResolved(context.Context, string) error        { return nil }
func (nopLogger) LogPostmortemGenerated(context.Context, string, int, time.Duration) error {
	return nil
}
func (nopLogger) LogIncidentIndexed(context.Context, string) error    { return nil }
func (nopLogger) LogIndexFailed(context.Context, string, error) error { return nil }
func (nopLogger) LogStageCompleted(context.Context, string, string, time.Duration) error {
	return nil
}
func (nopLogger) LogStageFailed(context.Context, string, string, error) error        { return nil }
func (nopLogger) LogNotificationSent(context.Context, string, string) error          { return nil }
func (nopLogger) LogNotificationFailed(context.Context, string, string, error) error { return nil }
func (nopLogger) LogTicketCreated(context.Context, string, string) error             { return nil }
func (nopLogger) LogTicketFailed(context.Context, string, error) error               { return nil }

func (nopLogger) Sync() error  { return nil }
func (nopLogger) Close() error { return nil }
