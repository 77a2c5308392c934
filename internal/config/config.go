package config

import "context"

// Package config provides configuration management for the incident bot.
//
// Responsibilities:
//   - Load configuration from a YAML file and environment variables
//   - Validate configuration on startup
//   - Provide runtime access to all configuration
//   - Support configuration reloading for some settings
//   - Manage sensitive data (API keys, webhook URLs)
//   - Establish reasonable defaults
//
// Configuration Sources (priority order, high to low):
//   1. Environment variables (INCIDENTBOT_* prefix)
//   2. YAML config file (default: config.yaml)
//   3. Built-in defaults (lowest priority)
//
// Components receive the resolved snapshot at construction; a running
// pipeline never sees values change underneath it.

// Config contains all configuration fields.
type Config struct {
	// Server configuration
	Server struct {
		Port int
		// AllowedOrigins is a list of origins permitted to open WebSocket
		// connections. Use ["*"] to allow any origin (development only).
		AllowedOrigins []string
		// RateLimitPerMinute throttles API requests per client.
		// 0 disables rate limiting.
		RateLimitPerMinute int
	}

	// LLM provider configuration
	LLM struct {
		Provider       string // only "gemini" is supported
		APIKey         string
		Model          string
		EmbeddingModel string
		Dimension      int
		BaseURL        string
		TimeoutSeconds int
	}

	// Knowledge index configuration
	Knowledge struct {
		Path        string // bbolt file for the vector index
		SearchLimit int
		MinScore    float64
	}

	// Database configuration
	Database struct {
		Path string // sqlite file for incidents
	}

	// Notifications configuration
	Notifications struct {
		SlackWebhookURL string
		Channel         string
		MockMode        bool
	}

	// Ticketing configuration
	Ticketing struct {
		BaseURL    string
		APIToken   string
		ProjectKey string
		MockMode   bool
	}

	// Logging configuration
	Logging struct {
		Level        string
		Format       string
		AuditLogPath string
		AppLogPath   string
	}
}

// Manager defines the interface for configuration access.
type Manager interface {
	// Load loads configuration from all sources.
	Load(ctx context.Context) error

	// Get returns the current configuration.
	Get(ctx context.Context) *Config

	// Validate validates configuration is correct and complete.
	Validate(ctx context.Context) error

	// Watch watches for configuration changes and reloads.
	Watch(ctx context.Context) <-chan Config

	// Reload reloads configuration from sources.
	Reload(ctx context.Context) error
}

// NewManager creates a new configuration manager.
func NewManager(configPath string) (Manager, error) {
	mgr := &viperManager{
		configPath: configPath,
		config:     DefaultConfig(),
		watchChan:  make(chan Config, 1),
	}
	return mgr, nil
}
