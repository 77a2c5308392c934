package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// viperManager implements Manager using Viper.
type viperManager struct {
	configPath string
	config     *Config
	viper      *viper.Viper
	watchChan  chan Config
}

// Load loads configuration from all sources.
func (m *viperManager) Load(ctx context.Context) error {
	m.viper = viper.New()

	m.viper.SetConfigFile(m.configPath)
	m.viper.SetConfigType("yaml")

	m.viper.SetEnvPrefix("INCIDENTBOT")
	m.viper.AutomaticEnv()
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	m.setDefaults()

	// The config file is optional; defaults plus env vars are a complete
	// configuration on their own.
	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		} else if os.IsNotExist(err) {
		} else {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := m.unmarshalConfig(); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.applyEnvOverrides()

	return nil
}

// Get returns the current configuration.
func (m *viperManager) Get(ctx context.Context) *Config {
	return m.config
}

// Validate validates configuration is correct and complete.
func (m *viperManager) Validate(ctx context.Context) error {
	errs := m.config.Validate()
	if len(errs) > 0 {
		var errMsgs []string
		for _, err := range errs {
			errMsgs = append(errMsgs, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errMsgs, "\n  - "))
	}
	return nil
}

// Watch watches for configuration changes and reloads.
func (m *viperManager) Watch(ctx context.Context) <-chan Config {
	m.viper.WatchConfig()
	m.viper.OnConfigChange(func(e fsnotify.Event) {
		if err := m.unmarshalConfig(); err != nil {
			return
		}
		m.applyEnvOverrides()
		select {
		case m.watchChan <- *m.config:
		default:
			// Channel full, skip this update
		}
	})

	return m.watchChan
}

// Reload reloads configuration from sources.
func (m *viperManager) Reload(ctx context.Context) error {
	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := m.unmarshalConfig(); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.applyEnvOverrides()

	return nil
}

// setDefaults sets default values in viper.
func (m *viperManager) setDefaults() {
	defaults := DefaultConfig()

	m.viper.SetDefault("server.port", defaults.Server.Port)
	m.viper.SetDefault("server.allowed_origins", defaults.Server.AllowedOrigins)
	m.viper.SetDefault("server.rate_limit_per_minute", defaults.Server.RateLimitPerMinute)

	m.viper.SetDefault("llm.provider", defaults.LLM.Provider)
	m.viper.SetDefault("llm.api_key", defaults.LLM.APIKey)
	m.viper.SetDefault("llm.model", defaults.LLM.Model)
	m.viper.SetDefault("llm.embedding_model", defaults.LLM.EmbeddingModel)
	m.viper.SetDefault("llm.dimension", defaults.LLM.Dimension)
	m.viper.SetDefault("llm.base_url", defaults.LLM.BaseURL)
	m.viper.SetDefault("llm.timeout_seconds", defaults.LLM.TimeoutSeconds)

	m.viper.SetDefault("knowledge.path", defaults.Knowledge.Path)
	m.viper.SetDefault("knowledge.search_limit", defaults.Knowledge.SearchLimit)
	m.viper.SetDefault("knowledge.min_score", defaults.Knowledge.MinScore)

	m.viper.SetDefault("database.path", defaults.Database.Path)

	m.viper.SetDefault("notifications.slack_webhook_url", defaults.Notifications.SlackWebhookURL)
	m.viper.SetDefault("notifications.channel", defaults.Notifications.Channel)
	m.viper.SetDefault("notifications.mock_mode", defaults.Notifications.MockMode)

	m.viper.SetDefault("ticketing.base_url", defaults.Ticketing.BaseURL)
	m.viper.SetDefault("ticketing.api_token", defaults.Ticketing.APIToken)
	m.viper.SetDefault("ticketing.project_key", defaults.Ticketing.ProjectKey)
	m.viper.SetDefault("ticketing.mock_mode", defaults.Ticketing.MockMode)

	m.viper.SetDefault("logging.level", defaults.Logging.Level)
	m.viper.SetDefault("logging.format", defaults.Logging.Format)
	m.viper.SetDefault("logging.audit_log_path", defaults.Logging.AuditLogPath)
	m.viper.SetDefault("logging.app_log_path", defaults.Logging.AppLogPath)
}

// unmarshalConfig unmarshals viper config into the Config struct.
func (m *viperManager) unmarshalConfig() error {
	cfg := &Config{}

	cfg.Server.Port = m.viper.GetInt("server.port")
	cfg.Server.AllowedOrigins = m.viper.GetStringSlice("server.allowed_origins")
	cfg.Server.RateLimitPerMinute = m.viper.GetInt("server.rate_limit_per_minute")

	cfg.LLM.Provider = m.viper.GetString("llm.provider")
	cfg.LLM.APIKey = m.viper.GetString("llm.api_key")
	cfg.LLM.Model = m.viper.GetString("llm.model")
	cfg.LLM.EmbeddingModel = m.viper.GetString("llm.embedding_model")
	cfg.LLM.Dimension = m.viper.GetInt("llm.dimension")
	cfg.LLM.BaseURL = m.viper.GetString("llm.base_url")
	cfg.LLM.TimeoutSeconds = m.viper.GetInt("llm.timeout_seconds")

	cfg.Knowledge.Path = m.viper.GetString("knowledge.path")
	cfg.Knowledge.SearchLimit = m.viper.GetInt("knowledge.search_limit")
	cfg.Knowledge.MinScore = m.viper.GetFloat64("knowledge.min_score")

	cfg.Database.Path = m.viper.GetString("database.path")

	cfg.Notifications.SlackWebhookURL = m.viper.GetString("notifications.slack_webhook_url")
	cfg.Notifications.Channel = m.viper.GetString("notifications.channel")
	cfg.Notifications.MockMode = m.viper.GetBool("notifications.mock_mode")

	cfg.Ticketing.BaseURL = m.viper.GetString("ticketing.base_url")
	cfg.Ticketing.APIToken = m.viper.GetString("ticketing.api_token")
	cfg.Ticketing.ProjectKey = m.viper.GetString("ticketing.project_key")
	cfg.Ticketing.MockMode = m.viper.GetBool("ticketing.mock_mode")

	cfg.Logging.Level = m.viper.GetString("logging.level")
	cfg.Logging.Format = m.viper.GetString("logging.format")
	cfg.Logging.AuditLogPath = m.viper.GetString("logging.audit_log_path")
	cfg.Logging.AppLogPath = m.viper.GetString("logging.app_log_path")

	m.config = cfg
	return nil
}

// applyEnvOverrides applies environment variable overrides for
// sensitive data that does not belong in the config file.
func (m *viperManager) applyEnvOverrides() {
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		m.config.LLM.APIKey = apiKey
	}

	if webhook := os.Getenv("INCIDENTBOT_SLACK_WEBHOOK_URL"); webhook != "" {
		m.config.Notifications.SlackWebhookURL = webhook
		m.config.Notifications.MockMode = false
	}

	if token := os.Getenv("INCIDENTBOT_TICKETING_API_TOKEN"); token != "" {
		m.config.Ticketing.APIToken = token
	}

	if portEnv := os.Getenv("INCIDENTBOT_PORT"); portEnv != "" {
		if port, err := strconv.Atoi(portEnv); err == nil {
			m.config.Server.Port = port
		}
	}
}
