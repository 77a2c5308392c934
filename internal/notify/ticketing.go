package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/models"
)

// TicketingClient files action items with an issue tracker. In mock
// mode it hands out sequential ticket IDs under the project key and
// keeps them in memory.
type TicketingClient struct {
	baseURL    string
	apiToken   string
	projectKey string
	mockMode   bool
	httpClient *http.Client
	logger     *zap.Logger

	mu      sync.Mutex
	counter int
	tickets map[string]*models.TicketRef
}

type TicketingConfig struct {
	BaseURL    string
	APIToken   string
	ProjectKey string
	MockMode   bool
	Timeout    time.Duration
}

func NewTicketingClient(cfg TicketingConfig, logger *zap.Logger) (*TicketingClient, error) {
	if !cfg.MockMode && cfg.BaseURL == "" {
		return nil, fmt.Errorf("ticketing base url is required outside mock mode")
	}
	if cfg.ProjectKey == "" {
		cfg.ProjectKey = "INC"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketingClient{
		baseURL:    cfg.BaseURL,
		apiToken:   cfg.APIToken,
		projectKey: cfg.ProjectKey,
		mockMode:   cfg.MockMode,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		tickets:    make(map[string]*models.TicketRef),
	}, nil
}

func (c *TicketingClient) CreateTicket(ctx context.Context, item *models.ActionItem) (*models.TicketRef, error) {
	if c.mockMode {
		return c.createMockTicket(item), nil
	}
	return c.createRemoteTicket(ctx, item)
}

func (c *TicketingClient) createMockTicket(item *models.ActionItem) *models.TicketRef {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counter++
	ref := &models.TicketRef{
		ID:  fmt.Sprintf("%s-%d", c.projectKey, c.counter),
		URL: fmt.Sprintf("https://mock-tracker.example.com/issue/%s-%d", c.projectKey, c.counter),
	}
	c.tickets[ref.ID] = ref

	c.logger.Info("ticket created (mock)",
		zap.String("ticket_id", ref.ID),
		zap.String("incident_id", item.IncidentID),
		zap.String("priority", string(item.Priority)),
	)
	return ref
}

type createIssueRequest struct {
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Labels      []string `json:"labels"`
}

type createIssueResponse struct {
	Key string `json:"key"`
	URL string `json:"self"`
}

func (c *TicketingClient) createRemoteTicket(ctx context.Context, item *models.ActionItem) (*models.TicketRef, error) {
	reqBody := createIssueRequest{
		Summary:     item.Description,
		Description: fmt.Sprintf("Follow-up from incident %s.\nCategory: %s\nEstimated effort: %s", item.IncidentID, item.Category, item.EstimatedEffort),
		Priority:    string(item.Priority),
		Labels:      []string{"incident-followup", string(item.Category)},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal issue request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rest/api/2/issue", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create issue request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read ticket response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ticket creation returned status %d", resp.StatusCode)
	}

	var issue createIssueResponse
	if err := json.Unmarshal(respBody, &issue); err != nil {
		return nil, fmt.Errorf("decode ticket response: %w", err)
	}
	if issue.Key == "" {
		return nil, fmt.Errorf("ticket response missing issue key")
	}
	return &models.TicketRef{ID: issue.Key, URL: issue.URL}, nil
}
