package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/models"
)

var severityColors = map[models.Severity]string{
	models.SeveritySEV1: "#d9534f", // red
	models.SeveritySEV2: "#f0ad4e", // orange
	models.SeveritySEV3: "#5bc0de", // blue
	models.SeveritySEV4: "#5cb85c", // green
}

const defaultColor = "#777777"

// SlackNotifier posts incident summaries to a Slack incoming webhook.
// In mock mode it logs the payload instead of sending it, which is how
// demos and tests run.
type SlackNotifier struct {
	webhookURL string
	channel    string
	mockMode   bool
	httpClient *http.Client
	logger     *zap.Logger
}

type SlackConfig struct {
	WebhookURL string
	Channel    string
	MockMode   bool
	Timeout    time.Duration
}

func NewSlackNotifier(cfg SlackConfig, logger *zap.Logger) (*SlackNotifier, error) {
	if !cfg.MockMode && cfg.WebhookURL == "" {
		return nil, fmt.Errorf("slack webhook url is required outside mock mode")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlackNotifier{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		mockMode:   cfg.MockMode,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

type slackAttachment struct {
	Color  string `json:"color"`
	Text   string `json:"text"`
	Footer string `json:"footer"`
}

type slackPayload struct {
	Text        string            `json:"text"`
	Channel     string            `json:"channel,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

func (n *SlackNotifier) Notify(ctx context.Context, inc *models.Incident, message string) error {
	color, ok := severityColors[inc.Severity]
	if !ok {
		color = defaultColor
	}

	payload := slackPayload{
		Text:    message,
		Channel: n.channel,
		Attachments: []slackAttachment{
			{Color: color, Text: message, Footer: "Incident Response Bot"},
		},
	}

	if n.mockMode {
		n.logger.Info("slack notification (mock)",
			zap.String("incident_id", inc.ID),
			zap.String("severity", string(inc.Severity)),
			zap.String("message", message),
		)
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send slack notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}
