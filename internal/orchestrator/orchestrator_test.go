package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"go.etcd.io/bbolt"

	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/incident"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/knowledge"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/models"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/stages"
)

const testDimension = 64

// routingGenerator answers each stage by recognizing its prompt.
type routingGenerator struct {
	calls      []string
	triageResp string
	failAll    bool
}

const triageResponse = `SEVERITY: SEV2
TITLE: Payment API connection pool exhausted
AFFECTED_SERVICES: payment-api
SYMPTOMS: connection pool exhausted, requests timing out
IMMEDIATE_ACTIONS: raise pool ceiling, check recent deploys`

const postmortemResponse = `## Executive Summary
The payment API degraded because its connection pool was exhausted.

## Root Cause Analysis
Pool sizing never followed traffic growth.

## Action Items
- [HIGH] Raise the connection pool ceiling
- [MEDIUM] Add pool saturation alerting

## Lessons Learned
- Revisit capacity limits after traffic growth`

const suggestionsResponse = `- Raise the connection pool ceiling to match current traffic
- Roll back the most recent payment-api deploy
- Enable pool saturation alerting before the next rollout`

const actionsResponse = `ACTION: Raise the connection pool ceiling
PRIORITY: HIGH
CATEGORY: technical
ESTIMATED_EFFORT: 4 hours

ACTION: Add pool saturation alerting
PRIORITY: MEDIUM
CATEGORY: monitoring
ESTIMATED_EFFORT: 2 hours`

func (g *routingGenerator) Generate(_ context.Context, prompt string, _ float32) (string, error) {
	if g.failAll {
		g.calls = append(g.calls, "failed")
		return "this is not structured output", nil
	}
	switch {
	case strings.Contains(prompt, "remediation ideas"):
		g.calls = append(g.calls, "suggestions")
		return suggestionsResponse, nil
	case strings.Contains(prompt, "POSTMORTEM TEXT:"):
		g.calls = append(g.calls, "actions")
		return actionsResponse, nil
	case strings.Contains(prompt, "BLAMELESS postmortem"):
		g.calls = append(g.calls, "postmortem")
		return postmortemResponse, nil
	case strings.Contains(prompt, "ALERT DATA"):
		g.calls = append(g.calls, "triage")
		if g.triageResp != "" {
			return g.triageResp, nil
		}
		return triageResponse, nil
	default:
		g.calls = append(g.calls, "report")
		return "Payment API is degraded. The connection pool is exhausted and requests are timing out.", nil
	}
}

// wordEmbedder is the deterministic bag-of-words embedding stand-in.
type wordEmbedder struct {
	slots map[string]int
	err   error
}

func (e *wordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	vec := make([]float32, testDimension)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()")
		if word == "" {
			continue
		}
		slot, ok := e.slots[word]
		if !ok {
			slot = len(e.slots) % testDimension
			e.slots[word] = slot
		}
		vec[slot]++
	}
	return vec, nil
}

func (e *wordEmbedder) Dimension() int { return testDimension }

type recordingNotifier struct {
	messages []string
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, _ *models.Incident, message string) error {
	if n.err != nil {
		return n.err
	}
	n.messages = append(n.messages, message)
	return nil
}

type fakeTicketer struct {
	counter int
	err     error
}

func (t *fakeTicketer) CreateTicket(_ context.Context, _ *models.ActionItem) (*models.TicketRef, error) {
	if t.err != nil {
		return nil, t.err
	}
	t.counter++
	id := fmt.Sprintf("INC-%d", t.counter)
	return &models.TicketRef{ID: id, URL: "https://mock-tracker.example.com/issue/" + id}, nil
}

type testHarness struct {
	orch     *Orchestrator
	gen      *routingGenerator
	embedder *wordEmbedder
	notifier *recordingNotifier
	ticketer *fakeTicketer
	svc      *knowledge.Service
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	return newHarnessCfg(t, Config{SearchLimit: 3, MinScore: 0.7})
}

func newHarnessCfg(t *testing.T, cfg Config) *testHarness {
	t.Helper()

	store, err := incident.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	db, err := bbolt.Open(filepath.Join(t.TempDir(), "vectors.db"), 0o600, nil)
	if err != nil {
		t.Fatalf("bbolt open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	idx, err := knowledge.NewBoltIndex(db, testDimension)
	if err != nil {
		t.Fatalf("NewBoltIndex failed: %v", err)
	}
	embedder := &wordEmbedder{slots: make(map[string]int)}
	svc, err := knowledge.NewService(idx, embedder)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	gen := &routingGenerator{}
	notifier := &recordingNotifier{}
	ticketer := &fakeTicketer{}

	orch, err := New(Deps{
		Store:       store,
		Knowledge:   svc,
		Triage:      stages.NewTriageStage(gen),
		Report:      stages.NewReportStage(gen),
		Postmortem:  stages.NewPostmortemStage(gen),
		Actions:     stages.NewActionStage(gen),
		Suggestions: stages.NewSuggestionsStage(gen),
		Notifier:    notifier,
		Ticketer:    ticketer,
	}, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	return &testHarness{orch: orch, gen: gen, embedder: embedder, notifier: notifier, ticketer: ticketer, svc: svc}
}

func paymentAlert() *models.Alert {
	return &models.Alert{
		AlertID:  "alert-1",
		Severity: models.SeveritySEV2,
		Service:  "payment-api",
		Message:  "connection pool exhausted on payment-api",
	}
}

func TestProcessIncident(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	inc, err := h.orch.ProcessIncident(ctx, paymentAlert())
	if err != nil {
		t.Fatalf("ProcessIncident failed: %v", err)
	}

	if inc.Status != models.StatusInvestigating {
		t.Errorf("expected INVESTIGATING, got %s", inc.Status)
	}
	if inc.Severity != models.SeveritySEV2 {
		t.Errorf("expected SEV2, got %s", inc.Severity)
	}
	if inc.Report == "" {
		t.Error("expected non-empty report")
	}
	if !strings.HasPrefix(inc.ID, "INC-") {
		t.Errorf("unexpected incident id: %s", inc.ID)
	}
	if len(h.notifier.messages) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(h.notifier.messages))
	}
	if !strings.Contains(h.notifier.messages[0], "SEV2") {
		t.Errorf("notification missing severity: %q", h.notifier.messages[0])
	}

	// Stored copy matches the returned one.
	stored, err := h.orch.GetIncident(ctx, inc.ID)
	if err != nil {
		t.Fatalf("GetIncident failed: %v", err)
	}
	if stored.Status != models.StatusInvestigating || stored.Report != inc.Report {
		t.Errorf("stored incident mismatch: %+v", stored)
	}
}

func TestProcessIncidentInvalidAlert(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.ProcessIncident(context.Background(), &models.Alert{AlertID: "a"})
	if !errors.Is(err, ErrInvalidAlert) {
		t.Fatalf("expected ErrInvalidAlert, got %v", err)
	}
	if len(h.gen.calls) != 0 {
		t.Errorf("no stage should run for an invalid alert, got %v", h.gen.calls)
	}
}

func TestProcessIncidentStageFailureLeavesOpen(t *testing.T) {
	h := newHarness(t)
	h.gen.failAll = true
	ctx := context.Background()

	_, err := h.orch.ProcessIncident(ctx, paymentAlert())
	var parseErr *stages.GenerationParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected GenerationParseError, got %v", err)
	}

	all, err := h.orch.ListIncidents(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListIncidents failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected the partially created incident to exist, got %d", len(all))
	}
	if all[0].Status != models.StatusOpen {
		t.Errorf("expected incident to remain OPEN, got %s", all[0].Status)
	}
}

func TestProcessIncidentNotificationFailureSwallowed(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = errors.New("webhook unreachable")

	inc, err := h.orch.ProcessIncident(context.Background(), paymentAlert())
	if err != nil {
		t.Fatalf("notification failure must not fail the incident: %v", err)
	}
	if inc.Status != models.StatusInvestigating {
		t.Errorf("expected INVESTIGATING, got %s", inc.Status)
	}
}

func TestGeneratePostmortem(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	inc, err := h.orch.ProcessIncident(ctx, paymentAlert())
	if err != nil {
		t.Fatalf("ProcessIncident failed: %v", err)
	}

	result, err := h.orch.GeneratePostmortem(ctx, inc.ID)
	if err != nil {
		t.Fatalf("GeneratePostmortem failed: %v", err)
	}

	if !strings.Contains(result.Postmortem, "Executive Summary") {
		t.Error("postmortem text missing expected sections")
	}
	if len(result.ActionItems) != 2 {
		t.Fatalf("expected 2 action items, got %d", len(result.ActionItems))
	}
	for _, item := range result.ActionItems {
		if item.Ticket == nil {
			t.Errorf("action item %q has no ticket", item.Description)
		}
	}
	if len(result.LessonsLearned) != 1 {
		t.Errorf("unexpected lessons: %v", result.LessonsLearned)
	}

	stored, err := h.orch.GetIncident(ctx, inc.ID)
	if err != nil {
		t.Fatalf("GetIncident failed: %v", err)
	}
	if stored.Status != models.StatusResolved {
		t.Errorf("expected RESOLVED, got %s", stored.Status)
	}
	if stored.ResolvedAt == nil {
		t.Error("resolved_at not set")
	}

	count, err := h.orch.KnowledgeStats()
	if err != nil {
		t.Fatalf("KnowledgeStats failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 indexed incident, got %d", count)
	}
}

func TestGeneratePostmortemIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	inc, err := h.orch.ProcessIncident(ctx, paymentAlert())
	if err != nil {
		t.Fatalf("ProcessIncident failed: %v", err)
	}

	first, err := h.orch.GeneratePostmortem(ctx, inc.ID)
	if err != nil {
		t.Fatalf("first GeneratePostmortem failed: %v", err)
	}
	callsAfterFirst := len(h.gen.calls)

	second, err := h.orch.GeneratePostmortem(ctx, inc.ID)
	if err != nil {
		t.Fatalf("second GeneratePostmortem failed: %v", err)
	}

	if len(h.gen.calls) != callsAfterFirst {
		t.Error("replay must not invoke any stage")
	}
	if second.Postmortem != first.Postmortem {
		t.Error("replay returned different postmortem text")
	}
	if len(second.ActionItems) != len(first.ActionItems) {
		t.Fatalf("replay returned different action item count")
	}
	for i := range first.ActionItems {
		if second.ActionItems[i].Description != first.ActionItems[i].Description {
			t.Errorf("action item %d differs on replay", i)
		}
	}
	if second.SimilarIncidents != nil {
		t.Error("replay must not carry similarity results")
	}

	count, _ := h.orch.KnowledgeStats()
	if count != 1 {
		t.Errorf("replay must not re-index: count %d", count)
	}
}

func TestGeneratePostmortemNotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.GeneratePostmortem(context.Background(), "INC-20260101-999")
	var nf *models.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestGeneratePostmortemRejectsOpenIncident(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// An OPEN incident exists when a stage failed during intake.
	h.gen.failAll = true
	_, _ = h.orch.ProcessIncident(ctx, paymentAlert())
	all, _ := h.orch.ListIncidents(ctx, 1, 0)
	if len(all) != 1 {
		t.Fatal("expected one stored incident")
	}

	_, err := h.orch.GeneratePostmortem(ctx, all[0].ID)
	var ise *models.InvalidStateError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
}

func TestGeneratePostmortemUsesSimilarIncidents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Resolve a first incident so it lands in the knowledge index.
	first, err := h.orch.ProcessIncident(ctx, paymentAlert())
	if err != nil {
		t.Fatalf("ProcessIncident failed: %v", err)
	}
	if _, err := h.orch.GeneratePostmortem(ctx, first.ID); err != nil {
		t.Fatalf("GeneratePostmortem failed: %v", err)
	}

	// A near-duplicate second incident should retrieve the first.
	second, err := h.orch.ProcessIncident(ctx, &models.Alert{
		AlertID:  "alert-2",
		Severity: models.SeveritySEV2,
		Service:  "payment-api",
		Message:  "connection pool exhausted on payment-api again",
	})
	if err != nil {
		t.Fatalf("ProcessIncident failed: %v", err)
	}

	result, err := h.orch.GeneratePostmortem(ctx, second.ID)
	if err != nil {
		t.Fatalf("GeneratePostmortem failed: %v", err)
	}
	if len(result.SimilarIncidents) != 1 {
		t.Fatalf("expected 1 similar incident, got %d", len(result.SimilarIncidents))
	}
	if result.SimilarIncidents[0].IncidentID != first.ID {
		t.Errorf("expected %s, got %s", first.ID, result.SimilarIncidents[0].IncidentID)
	}
	if result.SimilarIncidents[0].Score <= 0.7 {
		t.Errorf("expected score above threshold, got %v", result.SimilarIncidents[0].Score)
	}
}

func TestGeneratePostmortemSurvivesIndexFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	inc, err := h.orch.ProcessIncident(ctx, paymentAlert())
	if err != nil {
		t.Fatalf("ProcessIncident failed: %v", err)
	}

	h.embedder.err = errors.New("embedding provider down")
	result, err := h.orch.GeneratePostmortem(ctx, inc.ID)
	if err != nil {
		t.Fatalf("index failure must not fail the postmortem: %v", err)
	}
	if result.Postmortem == "" {
		t.Error("expected postmortem despite index failure")
	}

	stored, _ := h.orch.GetIncident(ctx, inc.ID)
	if stored.Status != models.StatusResolved {
		t.Errorf("expected RESOLVED, got %s", stored.Status)
	}
	count, _ := h.orch.KnowledgeStats()
	if count != 0 {
		t.Errorf("expected nothing indexed, got %d", count)
	}
}

func TestGeneratePostmortemTicketFailureSwallowed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	inc, err := h.orch.ProcessIncident(ctx, paymentAlert())
	if err != nil {
		t.Fatalf("ProcessIncident failed: %v", err)
	}

	h.ticketer.err = errors.New("tracker unavailable")
	result, err := h.orch.GeneratePostmortem(ctx, inc.ID)
	if err != nil {
		t.Fatalf("ticket failure must not fail the postmortem: %v", err)
	}
	for _, item := range result.ActionItems {
		if item.Ticket != nil {
			t.Errorf("expected no ticket on %q", item.Description)
		}
	}
}

func TestIncidentIDsAreSequentialPerDay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.orch.ProcessIncident(ctx, paymentAlert())
	if err != nil {
		t.Fatalf("ProcessIncident failed: %v", err)
	}
	second, err := h.orch.ProcessIncident(ctx, paymentAlert())
	if err != nil {
		t.Fatalf("ProcessIncident failed: %v", err)
	}

	if !strings.HasSuffix(first.ID, "-001") || !strings.HasSuffix(second.ID, "-002") {
		t.Errorf("expected sequential ids, got %s and %s", first.ID, second.ID)
	}
}

func TestSuggestSolutions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Resolve a first incident so suggestions have history to mine.
	first, err := h.orch.ProcessIncident(ctx, paymentAlert())
	if err != nil {
		t.Fatalf("ProcessIncident failed: %v", err)
	}
	if _, err := h.orch.GeneratePostmortem(ctx, first.ID); err != nil {
		t.Fatalf("GeneratePostmortem failed: %v", err)
	}

	second, err := h.orch.ProcessIncident(ctx, &models.Alert{
		AlertID:  "alert-2",
		Severity: models.SeveritySEV2,
		Service:  "payment-api",
		Message:  "connection pool exhausted on payment-api again",
	})
	if err != nil {
		t.Fatalf("ProcessIncident failed: %v", err)
	}

	suggestions, err := h.orch.SuggestSolutions(ctx, second.ID)
	if err != nil {
		t.Fatalf("SuggestSolutions failed: %v", err)
	}
	if len(suggestions) != 3 {
		t.Fatalf("expected 3 suggestions, got %d", len(suggestions))
	}
	if suggestions[1] != "Roll back the most recent payment-api deploy" {
		t.Errorf("unexpected suggestion: %q", suggestions[1])
	}
	if h.gen.calls[len(h.gen.calls)-1] != "suggestions" {
		t.Errorf("expected a suggestions generation call, got %v", h.gen.calls)
	}
}

func TestSuggestSolutionsNoHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	inc, err := h.orch.ProcessIncident(ctx, paymentAlert())
	if err != nil {
		t.Fatalf("ProcessIncident failed: %v", err)
	}

	suggestions, err := h.orch.SuggestSolutions(ctx, inc.ID)
	if err != nil {
		t.Fatalf("SuggestSolutions failed: %v", err)
	}
	if suggestions != nil {
		t.Errorf("expected no suggestions for an empty index, got %v", suggestions)
	}
	for _, call := range h.gen.calls {
		if call == "suggestions" {
			t.Error("no generation call expected when history is empty")
		}
	}
}

func TestSuggestSolutionsNotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.SuggestSolutions(context.Background(), "INC-20260101-999")
	var nf *models.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

const indexerTriageResponse = `SEVERITY: SEV3
TITLE: Search indexer backlog growing
AFFECTED_SERVICES: search-indexer
SYMPTOMS: queue depth rising
IMMEDIATE_ACTIONS: scale workers`

func TestMinScoreZeroDisablesFiltering(t *testing.T) {
	h := newHarnessCfg(t, Config{SearchLimit: 3, MinScore: 0})
	ctx := context.Background()

	// Resolve an incident with mostly disjoint vocabulary so the later
	// payment query scores it well below 0.7.
	h.gen.triageResp = indexerTriageResponse
	first, err := h.orch.ProcessIncident(ctx, &models.Alert{
		AlertID:  "alert-1",
		Severity: models.SeveritySEV3,
		Service:  "search-indexer",
		Message:  "queue depth rising on search-indexer",
	})
	if err != nil {
		t.Fatalf("ProcessIncident failed: %v", err)
	}
	if _, err := h.orch.GeneratePostmortem(ctx, first.ID); err != nil {
		t.Fatalf("GeneratePostmortem failed: %v", err)
	}
	h.gen.triageResp = ""

	second, err := h.orch.ProcessIncident(ctx, paymentAlert())
	if err != nil {
		t.Fatalf("ProcessIncident failed: %v", err)
	}

	result, err := h.orch.GeneratePostmortem(ctx, second.ID)
	if err != nil {
		t.Fatalf("GeneratePostmortem failed: %v", err)
	}
	if len(result.SimilarIncidents) != 1 {
		t.Fatalf("expected the weak match to survive with no score floor, got %d", len(result.SimilarIncidents))
	}
	got := result.SimilarIncidents[0]
	if got.IncidentID != first.ID {
		t.Errorf("expected %s, got %s", first.ID, got.IncidentID)
	}
	if got.Score <= 0 || got.Score >= 0.7 {
		t.Errorf("expected a weak positive score below 0.7, got %v", got.Score)
	}
}
