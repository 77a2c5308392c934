package config

// DefaultConfig returns a configuration with all default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	// Server defaults
	cfg.Server.Port = 8080
	cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.Server.RateLimitPerMinute = 60

	// LLM defaults
	cfg.LLM.Provider = "gemini"
	cfg.LLM.APIKey = ""
	cfg.LLM.Model = "gemini-2.5-flash"
	cfg.LLM.EmbeddingModel = "text-embedding-004"
	cfg.LLM.Dimension = 768
	cfg.LLM.BaseURL = ""
	cfg.LLM.TimeoutSeconds = 120

	// Knowledge defaults
	cfg.Knowledge.Path = "data/knowledge.db"
	cfg.Knowledge.SearchLimit = 3
	cfg.Knowledge.MinScore = 0.7

	// Database defaults
	cfg.Database.Path = "data/incidents.db"

	// Notification defaults: mock mode until a webhook is configured.
	cfg.Notifications.SlackWebhookURL = ""
	cfg.Notifications.Channel = "#incidents"
	cfg.Notifications.MockMode = true

	// Ticketing defaults
	cfg.Ticketing.BaseURL = ""
	cfg.Ticketing.APIToken = ""
	cfg.Ticketing.ProjectKey = "INC"
	cfg.Ticketing.MockMode = true

	// Logging defaults
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Logging.AuditLogPath = "logs/audit.log"
	cfg.Logging.AppLogPath = "logs/app.log"

	return cfg
}
