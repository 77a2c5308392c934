package config

import (
	"fmt"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validate validates the configuration and returns all validation errors.
func (c *Config) Validate() []error {
	var errs []error

	// Validate server configuration
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", c.Server.Port),
		})
	}

	if c.Server.RateLimitPerMinute < 0 {
		errs = append(errs, &ValidationError{
			Field:   "server.rate_limit_per_minute",
			Message: "rate_limit_per_minute cannot be negative",
		})
	}

	// Validate LLM configuration
	if c.LLM.Provider != "gemini" {
		errs = append(errs, &ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("invalid provider %q, only gemini is supported", c.LLM.Provider),
		})
	}
	if c.LLM.APIKey == "" {
		errs = append(errs, &ValidationError{
			Field:   "llm.api_key",
			Message: "Gemini API key is required (set GEMINI_API_KEY)",
		})
	}
	if c.LLM.Model == "" {
		errs = append(errs, &ValidationError{
			Field:   "llm.model",
			Message: "model is required",
		})
	}
	if c.LLM.EmbeddingModel == "" {
		errs = append(errs, &ValidationError{
			Field:   "llm.embedding_model",
			Message: "embedding_model is required",
		})
	}
	if c.LLM.Dimension < 1 {
		errs = append(errs, &ValidationError{
			Field:   "llm.dimension",
			Message: fmt.Sprintf("dimension must be at least 1, got %d", c.LLM.Dimension),
		})
	}
	if c.LLM.TimeoutSeconds < 1 {
		errs = append(errs, &ValidationError{
			Field:   "llm.timeout_seconds",
			Message: "timeout_seconds must be at least 1",
		})
	}

	// Validate knowledge configuration
	if c.Knowledge.Path == "" {
		errs = append(errs, &ValidationError{
			Field:   "knowledge.path",
			Message: "knowledge index path is required",
		})
	}
	if c.Knowledge.SearchLimit < 1 {
		errs = append(errs, &ValidationError{
			Field:   "knowledge.search_limit",
			Message: "search_limit must be at least 1",
		})
	}
	if c.Knowledge.MinScore < 0 || c.Knowledge.MinScore > 1 {
		errs = append(errs, &ValidationError{
			Field:   "knowledge.min_score",
			Message: fmt.Sprintf("min_score must be between 0 and 1, got %v", c.Knowledge.MinScore),
		})
	}

	// Validate database configuration
	if c.Database.Path == "" {
		errs = append(errs, &ValidationError{
			Field:   "database.path",
			Message: "database path is required",
		})
	}

	// Validate notifications configuration
	if !c.Notifications.MockMode && c.Notifications.SlackWebhookURL == "" {
		errs = append(errs, &ValidationError{
			Field:   "notifications.slack_webhook_url",
			Message: "slack_webhook_url is required when mock_mode is false",
		})
	}

	// Validate ticketing configuration
	if !c.Ticketing.MockMode {
		if c.Ticketing.BaseURL == "" {
			errs = append(errs, &ValidationError{
				Field:   "ticketing.base_url",
				Message: "base_url is required when mock_mode is false",
			})
		}
		if c.Ticketing.APIToken == "" {
			errs = append(errs, &ValidationError{
				Field:   "ticketing.api_token",
				Message: "api_token is required when mock_mode is false",
			})
		}
	}

	// Validate logging configuration
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, &ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level %q, must be debug, info, warn, or error", c.Logging.Level),
		})
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, &ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format %q, must be json or text", c.Logging.Format),
		})
	}

	return errs
}
