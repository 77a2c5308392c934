// Package gemini implements the llm.Generator and llm.Embedder contracts
// against the Google Generative Language HTTP API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/llm"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/metrics"
)

const (
	DefaultBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel          = "gemini-2.5-flash"
	DefaultEmbeddingModel = "text-embedding-004"
	DefaultDimension      = 768
	DefaultTimeout        = 120 * time.Second

	providerName = "gemini"
)

// Config carries the static provider settings handed in at construction.
type Config struct {
	APIKey         string
	Model          string // generation model, e.g. gemini-2.5-flash
	EmbeddingModel string // e.g. text-embedding-004
	BaseURL        string
	Dimension      int // embedding output size
	Timeout        time.Duration
}

// Client talks to the Gemini generateContent and embedContent endpoints.
type Client struct {
	apiKey         string
	model          string
	embeddingModel string
	baseURL        string
	dimension      int
	httpClient     *http.Client
}

// NewClient validates the config and builds a client. The API key is
// required; everything else falls back to defaults.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		apiKey:         cfg.APIKey,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		baseURL:        cfg.BaseURL,
		dimension:      cfg.Dimension,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Generation request/response wire types.

type generatePart struct {
	Text string `json:"text"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
	Role  string         `json:"role,omitempty"`
}

type generationConfig struct {
	Temperature float32 `json:"temperature"`
}

type generateRequest struct {
	Contents         []generateContent `json:"contents"`
	GenerationConfig generationConfig  `json:"generationConfig"`
}

type generateCandidate struct {
	Content      generateContent `json:"content"`
	FinishReason string          `json:"finishReason,omitempty"`
}

type generateResponse struct {
	Candidates []generateCandidate `json:"candidates"`
	Error      *apiError           `json:"error,omitempty"`
}

// Embedding request/response wire types.

type embedRequest struct {
	Content generateContent `json:"content"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Generate renders a completion for the prompt at the given temperature.
func (c *Client) Generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	req := generateRequest{
		Contents: []generateContent{
			{Parts: []generatePart{{Text: prompt}}, Role: "user"},
		},
		GenerationConfig: generationConfig{Temperature: temperature},
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	var resp generateResponse
	if err := c.post(ctx, "generate", url, req, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", &llm.ProviderError{
			Provider: providerName, Op: "generate",
			StatusCode: resp.Error.Code,
			Err:        errors.New(resp.Error.Message),
		}
	}
	if len(resp.Candidates) == 0 {
		return "", &llm.ProviderError{
			Provider: providerName, Op: "generate",
			Err: errors.New("response contained no candidates"),
		}
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		text += part.Text
	}
	return text, nil
}

// Embed maps text onto the provider's fixed-length vector. A vector of
// unexpected dimensionality is reported as a provider error so callers
// never store a malformed embedding.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	req := embedRequest{
		Content: generateContent{Parts: []generatePart{{Text: text}}},
	}

	url := fmt.Sprintf("%s/models/%s:embedContent", c.baseURL, c.embeddingModel)
	var resp embedResponse
	if err := c.post(ctx, "embed", url, req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, &llm.ProviderError{
			Provider: providerName, Op: "embed",
			StatusCode: resp.Error.Code,
			Err:        errors.New(resp.Error.Message),
		}
	}
	if got := len(resp.Embedding.Values); got != c.dimension {
		return nil, &llm.ProviderError{
			Provider: providerName, Op: "embed",
			Err: fmt.Errorf("embedding dimension mismatch: expected %d, got %d", c.dimension, got),
		}
	}
	return resp.Embedding.Values, nil
}

// Dimension reports the fixed embedding output size.
func (c *Client) Dimension() int { return c.dimension }

// post sends a JSON request and decodes the JSON response, converting
// transport and HTTP-level failures into ProviderError.
func (c *Client) post(ctx context.Context, op, url string, reqBody, respBody interface{}) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	metrics.LLMRequestDuration.WithLabelValues(providerName, op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(providerName, op, "failure").Inc()
		return &llm.ProviderError{Provider: providerName, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(providerName, op, "failure").Inc()
		return &llm.ProviderError{Provider: providerName, Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		metrics.LLMRequestsTotal.WithLabelValues(providerName, op, "failure").Inc()
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return &llm.ProviderError{
			Provider: providerName, Op: op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", preview),
		}
	}

	if err := json.Unmarshal(body, respBody); err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(providerName, op, "failure").Inc()
		return &llm.ProviderError{Provider: providerName, Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	metrics.LLMRequestsTotal.WithLabelValues(providerName, op, "success").Inc()
	return nil
}
