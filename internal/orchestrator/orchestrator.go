// Package orchestrator drives the incident pipeline: triage and
// reporting on intake, then similarity retrieval, postmortem writing,
// action extraction, ticketing, and knowledge indexing on resolution.
// Stages run in strict sequence because each consumes the previous
// one's output.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/audit"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/incident"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/knowledge"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/metrics"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/models"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/notify"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/stages"
)

// ErrInvalidAlert wraps alert validation failures.
var ErrInvalidAlert = errors.New("invalid alert")

// Publisher receives incident lifecycle events for live feeds. May be
// nil when no feed is attached.
type Publisher interface {
	PublishIncidentEvent(eventType string, inc *models.Incident)
}

// Config carries the retrieval settings the orchestrator needs.
type Config struct {
	// SearchLimit is how many similar incidents to retrieve for
	// postmortem context.
	SearchLimit int

	// MinScore filters out weak similarity matches. Zero keeps every
	// match; the operational default comes from configuration.
	MinScore float64

	// NotifyChannel names the chat channel for audit records.
	NotifyChannel string
}

// Orchestrator owns incident state and sequences the pipeline stages.
type Orchestrator struct {
	store       incident.Store
	knowledge   *knowledge.Service
	triage      *stages.TriageStage
	report      *stages.ReportStage
	postmortem  *stages.PostmortemStage
	actions     *stages.ActionStage
	suggestions *stages.SuggestionsStage
	notifier    notify.Notifier
	ticketer    notify.Ticketer
	auditLog    audit.Logger
	publisher   Publisher
	cfg         Config

	now func() time.Time

	// Per-incident locks so postmortem generation for one incident
	// never interleaves with itself, while unrelated incidents proceed
	// in parallel.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Store       incident.Store
	Knowledge   *knowledge.Service
	Triage      *stages.TriageStage
	Report      *stages.ReportStage
	Postmortem  *stages.PostmortemStage
	Actions     *stages.ActionStage
	Suggestions *stages.SuggestionsStage
	Notifier    notify.Notifier
	Ticketer    notify.Ticketer
	Audit       audit.Logger
	Publisher   Publisher
}

func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Store == nil || deps.Knowledge == nil {
		return nil, fmt.Errorf("store and knowledge service are required")
	}
	if deps.Triage == nil || deps.Report == nil || deps.Postmortem == nil || deps.Actions == nil || deps.Suggestions == nil {
		return nil, fmt.Errorf("all pipeline stages are required")
	}
	if deps.Audit == nil {
		deps.Audit = audit.NewNopLogger()
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 3
	}
	// MinScore zero is a valid "no filter" setting; only negatives are
	// normalized.
	if cfg.MinScore < 0 {
		cfg.MinScore = 0
	}
	if cfg.NotifyChannel == "" {
		cfg.NotifyChannel = "slack"
	}

	return &Orchestrator{
		store:       deps.Store,
		knowledge:   deps.Knowledge,
		triage:      deps.Triage,
		report:      deps.Report,
		postmortem:  deps.Postmortem,
		actions:     deps.Actions,
		suggestions: deps.Suggestions,
		notifier:    deps.Notifier,
		ticketer:    deps.Ticketer,
		auditLog:    deps.Audit,
		publisher:   deps.Publisher,
		cfg:         cfg,
		now:         time.Now,
		locks:       make(map[string]*sync.Mutex),
	}, nil
}

// SetPublisher attaches the live event feed. Called once during
// startup, before the server accepts traffic.
func (o *Orchestrator) SetPublisher(p Publisher) {
	o.publisher = p
}

func (o *Orchestrator) lockIncident(id string) func() {
	o.mu.Lock()
	lock, ok := o.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[id] = lock
	}
	o.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// ProcessIncident validates the alert, runs triage and report, and
// returns the incident in INVESTIGATING state. On any stage failure
// the incident stays OPEN and the error is returned.
func (o *Orchestrator) ProcessIncident(ctx context.Context, alert *models.Alert) (*models.Incident, error) {
	if err := alert.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAlert, err)
	}

	id, err := o.nextIncidentID(ctx)
	if err != nil {
		return nil, fmt.Errorf("assign incident id: %w", err)
	}
	ctx = audit.WithCorrelationID(ctx, audit.GenerateCorrelationID())

	now := o.now().UTC()
	// Severity stays unset until triage classifies it; there is no
	// default severity.
	inc := &models.Incident{
		ID:          id,
		Title:       alert.Message,
		Description: alert.Message,
		Status:      models.StatusOpen,
		Alert:       *alert,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	inc.AddTimelineEvent("alert", fmt.Sprintf("Alert %s received for service %s", alert.AlertID, alert.Service))

	if err := o.store.SaveIncident(ctx, inc); err != nil {
		return nil, fmt.Errorf("save incident: %w", err)
	}

	triageResult, err := o.runTriage(ctx, inc)
	if err != nil {
		return nil, err
	}

	inc.Severity = triageResult.Severity
	inc.Title = triageResult.Title
	inc.AffectedServices = triageResult.AffectedServices
	inc.Symptoms = triageResult.Symptoms
	inc.SuggestedActions = triageResult.SuggestedActions
	inc.AddTimelineEvent("triage", fmt.Sprintf("Classified as %s: %s", inc.Severity, inc.Title))

	report, err := o.runReport(ctx, inc)
	if err != nil {
		return nil, err
	}
	inc.Report = report
	inc.AddTimelineEvent("report", "Initial incident report generated")

	if err := inc.TransitionTo(models.StatusInvestigating); err != nil {
		return nil, err
	}
	inc.UpdatedAt = o.now().UTC()

	if err := o.store.SaveIncident(ctx, inc); err != nil {
		return nil, fmt.Errorf("save incident: %w", err)
	}

	metrics.IncidentsTotal.WithLabelValues(string(inc.Severity), string(inc.Status)).Inc()
	_ = o.auditLog.LogIncidentCreated(ctx, inc.ID, string(inc.Severity))
	o.publish("incident.created", inc)

	// Notification is best-effort; a delivery failure never fails the
	// incident.
	o.dispatchNotification(ctx, inc)

	return inc, nil
}

func (o *Orchestrator) runTriage(ctx context.Context, inc *models.Incident) (*stages.TriageResult, error) {
	start := o.now()
	result, err := o.triage.Run(ctx, &inc.Alert)
	o.recordStage(ctx, inc.ID, "triage", start, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (o *Orchestrator) runReport(ctx context.Context, inc *models.Incident) (string, error) {
	start := o.now()
	report, err := o.report.Run(ctx, inc)
	o.recordStage(ctx, inc.ID, "report", start, err)
	if err != nil {
		return "", err
	}
	return report, nil
}

func (o *Orchestrator) recordStage(ctx context.Context, incidentID, stage string, start time.Time, err error) {
	duration := o.now().Sub(start)
	metrics.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	if err != nil {
		metrics.StageRunsTotal.WithLabelValues(stage, "failure").Inc()
		_ = o.auditLog.LogStageFailed(ctx, incidentID, stage, err)
		return
	}
	metrics.StageRunsTotal.WithLabelValues(stage, "success").Inc()
	_ = o.auditLog.LogStageCompleted(ctx, incidentID, stage, duration)
}

func (o *Orchestrator) dispatchNotification(ctx context.Context, inc *models.Incident) {
	if o.notifier == nil {
		return
	}
	message := fmt.Sprintf("[%s] %s: %s (services: %s)",
		inc.Severity, inc.ID, inc.Title, strings.Join(inc.AffectedServices, ", "))
	if err := o.notifier.Notify(ctx, inc, message); err != nil {
		metrics.NotificationsTotal.WithLabelValues(o.cfg.NotifyChannel, "failure").Inc()
		_ = o.auditLog.LogNotificationFailed(ctx, inc.ID, o.cfg.NotifyChannel, err)
		return
	}
	metrics.NotificationsTotal.WithLabelValues(o.cfg.NotifyChannel, "success").Inc()
	_ = o.auditLog.LogNotificationSent(ctx, inc.ID, o.cfg.NotifyChannel)
}

// GeneratePostmortem runs the resolution pipeline for an incident that
// is at least INVESTIGATING. Re-invoking it on a RESOLVED incident
// returns the cached artifacts without re-running any stage or
// re-indexing.
func (o *Orchestrator) GeneratePostmortem(ctx context.Context, incidentID string) (*models.PostmortemResult, error) {
	unlock := o.lockIncident(incidentID)
	defer unlock()

	inc, err := o.store.GetIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	ctx = audit.WithCorrelationID(ctx, audit.GenerateCorrelationID())

	switch inc.Status {
	case models.StatusOpen:
		return nil, &models.InvalidStateError{
			IncidentID: incidentID,
			Status:     inc.Status,
			Detail:     "postmortem requires an incident that reached INVESTIGATING",
		}
	case models.StatusResolved, models.StatusClosed:
		return cachedPostmortem(inc), nil
	}

	pmStart := o.now()

	similar := o.searchSimilar(ctx, inc)

	output, err := o.runPostmortem(ctx, inc, similar)
	if err != nil {
		metrics.PostmortemsTotal.WithLabelValues("failure").Inc()
		return nil, err
	}

	extracted, err := o.runActions(ctx, inc, output.Content)
	if err != nil {
		metrics.PostmortemsTotal.WithLabelValues("failure").Inc()
		return nil, err
	}

	now := o.now().UTC()
	items := make([]models.ActionItem, 0, len(extracted))
	for _, ex := range extracted {
		items = append(items, models.ActionItem{
			ID:              uuid.NewString(),
			IncidentID:      inc.ID,
			Description:     ex.Description,
			Priority:        ex.Priority,
			Category:        ex.Category,
			EstimatedEffort: ex.EstimatedEffort,
			CreatedAt:       now,
		})
	}

	// Ticket creation is best-effort per item.
	for i := range items {
		o.createTicket(ctx, &items[i])
	}

	inc.Postmortem = output.Content
	inc.LessonsLearned = output.LessonsLearned
	inc.ActionItems = items
	inc.ResolvedAt = &now
	inc.UpdatedAt = now
	inc.AddTimelineEvent("postmortem", fmt.Sprintf("Postmortem generated with %d action items", len(items)))

	if err := inc.TransitionTo(models.StatusResolved); err != nil {
		return nil, err
	}

	if err := o.store.SaveIncident(ctx, inc); err != nil {
		return nil, fmt.Errorf("save incident: %w", err)
	}

	metrics.PostmortemsTotal.WithLabelValues("success").Inc()
	_ = o.auditLog.LogPostmortemGenerated(ctx, inc.ID, len(items), o.now().Sub(pmStart))
	_ = o.auditLog.LogIncidentResolved(ctx, inc.ID)
	o.publish("incident.resolved", inc)

	// Index only after the postmortem is durably attached, so future
	// searches never surface an unresolved incident. Failure degrades
	// retrieval for future incidents but not this call.
	o.indexIncident(ctx, inc)

	return &models.PostmortemResult{
		IncidentID:       inc.ID,
		Postmortem:       inc.Postmortem,
		LessonsLearned:   inc.LessonsLearned,
		ActionItems:      inc.ActionItems,
		SimilarIncidents: similar,
	}, nil
}

// cachedPostmortem is the idempotent replay path: stored artifacts,
// no stage calls, no re-index. Similarity results are derived data and
// never persisted, so the replay carries none.
func cachedPostmortem(inc *models.Incident) *models.PostmortemResult {
	return &models.PostmortemResult{
		IncidentID:     inc.ID,
		Postmortem:     inc.Postmortem,
		LessonsLearned: inc.LessonsLearned,
		ActionItems:    inc.ActionItems,
	}
}

func (o *Orchestrator) searchSimilar(ctx context.Context, inc *models.Incident) []models.SimilarityResult {
	query := inc.Title + " " + inc.Description
	similar, err := o.knowledge.SearchSimilarIncidents(ctx, query, o.cfg.SearchLimit, o.cfg.MinScore, inc.ID)
	if err != nil {
		// Retrieval failure costs context, not the postmortem.
		metrics.KnowledgeSearchesTotal.WithLabelValues("failure").Inc()
		_ = o.auditLog.LogStageFailed(ctx, inc.ID, "retrieval", err)
		return nil
	}
	metrics.KnowledgeSearchesTotal.WithLabelValues("success").Inc()
	return similar
}

func (o *Orchestrator) runPostmortem(ctx context.Context, inc *models.Incident, similar []models.SimilarityResult) (*stages.PostmortemOutput, error) {
	start := o.now()
	output, err := o.postmortem.Run(ctx, inc, similar)
	o.recordStage(ctx, inc.ID, "postmortem", start, err)
	if err != nil {
		return nil, err
	}
	return output, nil
}

func (o *Orchestrator) runActions(ctx context.Context, inc *models.Incident, postmortem string) ([]stages.ExtractedAction, error) {
	start := o.now()
	extracted, err := o.actions.Run(ctx, postmortem)
	o.recordStage(ctx, inc.ID, "actions", start, err)
	if err != nil {
		return nil, err
	}
	return extracted, nil
}

func (o *Orchestrator) createTicket(ctx context.Context, item *models.ActionItem) {
	if o.ticketer == nil {
		return
	}
	ref, err := o.ticketer.CreateTicket(ctx, item)
	if err != nil {
		metrics.TicketsTotal.WithLabelValues("failure").Inc()
		_ = o.auditLog.LogTicketFailed(ctx, item.IncidentID, err)
		return
	}
	item.Ticket = ref
	metrics.TicketsTotal.WithLabelValues("success").Inc()
	_ = o.auditLog.LogTicketCreated(ctx, item.IncidentID, ref.ID)
}

func (o *Orchestrator) indexIncident(ctx context.Context, inc *models.Incident) {
	if err := o.knowledge.IndexIncident(ctx, inc); err != nil {
		metrics.KnowledgeIndexFailures.Inc()
		_ = o.auditLog.LogIndexFailed(ctx, inc.ID, err)
		return
	}
	_ = o.auditLog.LogIncidentIndexed(ctx, inc.ID)
	if count, err := o.knowledge.IncidentCount(); err == nil {
		metrics.KnowledgeIndexSize.Set(float64(count))
	}
}

// SuggestSolutions proposes remediations for an incident by mining the
// knowledge index for similar past failures and synthesizing their
// resolutions. An empty history yields no suggestions, not an error.
func (o *Orchestrator) SuggestSolutions(ctx context.Context, incidentID string) ([]string, error) {
	inc, err := o.store.GetIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	ctx = audit.WithCorrelationID(ctx, audit.GenerateCorrelationID())

	similar := o.searchSimilar(ctx, inc)
	if len(similar) == 0 {
		return nil, nil
	}

	start := o.now()
	suggestions, err := o.suggestions.Run(ctx, inc, similar)
	o.recordStage(ctx, inc.ID, "suggestions", start, err)
	if err != nil {
		return nil, err
	}
	return suggestions, nil
}

// GetIncident returns the stored incident.
func (o *Orchestrator) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	return o.store.GetIncident(ctx, id)
}

// ListIncidents returns stored incidents, newest first.
func (o *Orchestrator) ListIncidents(ctx context.Context, limit, offset int) ([]*models.Incident, error) {
	return o.store.ListIncidents(ctx, limit, offset)
}

// KnowledgeStats reports how many incidents are searchable.
func (o *Orchestrator) KnowledgeStats() (int, error) {
	return o.knowledge.IncidentCount()
}

func (o *Orchestrator) nextIncidentID(ctx context.Context) (string, error) {
	dateKey := o.now().UTC().Format("20060102")
	seq, err := o.store.NextSequence(ctx, dateKey)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("INC-%s-%03d", dateKey, seq), nil
}

func (o *Orchestrator) publish(eventType string, inc *models.Incident) {
	if o.publisher != nil {
		o.publisher.PublishIncidentEvent(eventType, inc)
	}
}
