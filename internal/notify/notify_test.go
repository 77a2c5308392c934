package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/models"
)

func TestSlackNotifyMockMode(t *testing.T) {
	notifier, err := NewSlackNotifier(SlackConfig{MockMode: true}, nil)
	if err != nil {
		t.Fatalf("NewSlackNotifier failed: %v", err)
	}

	inc := &models.Incident{ID: "INC-1", Severity: models.SeveritySEV1}
	if err := notifier.Notify(context.Background(), inc, "SEV1 incident declared"); err != nil {
		t.Fatalf("Notify failed in mock mode: %v", err)
	}
}

func TestSlackNotifyRequiresWebhookOutsideMockMode(t *testing.T) {
	if _, err := NewSlackNotifier(SlackConfig{MockMode: false}, nil); err == nil {
		t.Fatal("expected error for missing webhook url")
	}
}

func TestSlackNotifySendsSeverityColor(t *testing.T) {
	var payload slackPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier, err := NewSlackNotifier(SlackConfig{WebhookURL: server.URL, Channel: "#incidents"}, nil)
	if err != nil {
		t.Fatalf("NewSlackNotifier failed: %v", err)
	}

	inc := &models.Incident{ID: "INC-1", Severity: models.SeveritySEV2}
	if err := notifier.Notify(context.Background(), inc, "degradation detected"); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	if payload.Channel != "#incidents" {
		t.Errorf("unexpected channel: %q", payload.Channel)
	}
	if len(payload.Attachments) != 1 || payload.Attachments[0].Color != "#f0ad4e" {
		t.Errorf("expected SEV2 orange attachment, got %+v", payload.Attachments)
	}
}

func TestSlackNotifyReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	notifier, _ := NewSlackNotifier(SlackConfig{WebhookURL: server.URL}, nil)
	inc := &models.Incident{ID: "INC-1", Severity: models.SeveritySEV3}
	if err := notifier.Notify(context.Background(), inc, "msg"); err == nil {
		t.Fatal("expected error on 500 response")
	}
}

func TestTicketingMockModeSequentialIDs(t *testing.T) {
	client, err := NewTicketingClient(TicketingConfig{MockMode: true}, nil)
	if err != nil {
		t.Fatalf("NewTicketingClient failed: %v", err)
	}

	item := &models.ActionItem{IncidentID: "INC-1", Description: "fix it", Priority: models.PriorityHigh}
	first, err := client.CreateTicket(context.Background(), item)
	if err != nil {
		t.Fatalf("CreateTicket failed: %v", err)
	}
	second, err := client.CreateTicket(context.Background(), item)
	if err != nil {
		t.Fatalf("CreateTicket failed: %v", err)
	}

	if first.ID != "INC-1" || second.ID != "INC-2" {
		t.Errorf("expected sequential mock ids, got %s and %s", first.ID, second.ID)
	}
	if first.URL == "" {
		t.Error("mock ticket missing url")
	}
}

func TestTicketingRemoteCreate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issue" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer token-1" {
			t.Errorf("unexpected auth header: %s", auth)
		}
		var req createIssueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Priority != "HIGH" {
			t.Errorf("unexpected priority: %s", req.Priority)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(createIssueResponse{Key: "OPS-42", URL: "https://tracker.example.com/OPS-42"})
	}))
	defer server.Close()

	client, err := NewTicketingClient(TicketingConfig{BaseURL: server.URL, APIToken: "token-1"}, nil)
	if err != nil {
		t.Fatalf("NewTicketingClient failed: %v", err)
	}

	item := &models.ActionItem{
		IncidentID:  "INC-20260110-001",
		Description: "Raise the connection pool ceiling",
		Priority:    models.PriorityHigh,
		Category:    models.CategoryTechnical,
	}
	ref, err := client.CreateTicket(context.Background(), item)
	if err != nil {
		t.Fatalf("CreateTicket failed: %v", err)
	}
	if ref.ID != "OPS-42" {
		t.Errorf("unexpected ticket id: %s", ref.ID)
	}
}

func TestTicketingRemoteFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, _ := NewTicketingClient(TicketingConfig{BaseURL: server.URL}, nil)
	_, err := client.CreateTicket(context.Background(), &models.ActionItem{Description: "x"})
	if err == nil {
		t.Fatal("expected error on 502 response")
	}
}
