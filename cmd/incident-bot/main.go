package main

// Package main is the entry point for the incident-bot server.
//
// Responsibilities:
//   - Load and validate configuration from YAML and environment variables
//   - Open the SQLite incident store and the bbolt knowledge index
//   - Wire the Gemini provider into the four pipeline stages
//   - Start the REST API server with the WebSocket incident feed
//   - Register health and metrics endpoints
//   - Implement graceful shutdown with context cancellation
//
// Architecture Flow:
//   1. Alert (POST /api/v1/incidents) → Orchestrator → Triage + Report stages
//   2. Postmortem request → similarity retrieval → Postmortem + Action stages
//   3. Resolved incidents are embedded and indexed for future retrieval
//   4. REST + WebSocket expose incidents and lifecycle events

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/audit"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/config"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/incident"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/knowledge"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/llm/provider/gemini"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/notify"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/orchestrator"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/server"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/stages"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	// Configuration
	mgr, err := config.NewManager(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create config manager: %v\n", err)
		os.Exit(1)
	}
	if err := mgr.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := mgr.Validate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	cfg := mgr.Get(ctx)

	// Application logger
	logger, err := newAppLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Audit logger
	auditCfg := audit.DefaultConfig()
	auditCfg.AuditLogPath = cfg.Logging.AuditLogPath
	auditCfg.AppLogPath = cfg.Logging.AppLogPath
	auditCfg.LogLevel = cfg.Logging.Level
	auditLog, err := audit.NewLogger(auditCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create audit logger: %v\n", err)
		os.Exit(1)
	}
	defer auditLog.Close()

	_ = auditLog.Log(ctx, audit.NewEvent(audit.EventConfigLoaded).
		WithResult(audit.ResultSuccess).
		WithDescription(fmt.Sprintf("Configuration loaded from %s", *configPath)))

	// Components hold an immutable config snapshot; a file change is
	// recorded but takes effect on restart.
	go func() {
		for range mgr.Watch(ctx) {
			_ = auditLog.Log(ctx, audit.NewEvent(audit.EventConfigChanged).
				WithResult(audit.ResultSuccess).
				WithDescription("Configuration file changed on disk"))
			logger.Info("configuration file changed; restart to apply")
		}
	}()

	// Incident store
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Fatal("failed to create database directory", zap.Error(err))
	}
	store, err := incident.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to open incident store", zap.Error(err))
	}
	defer store.Close()

	// Knowledge index
	if err := os.MkdirAll(filepath.Dir(cfg.Knowledge.Path), 0o755); err != nil {
		logger.Fatal("failed to create knowledge directory", zap.Error(err))
	}
	db, err := bbolt.Open(cfg.Knowledge.Path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		logger.Fatal("failed to open knowledge index", zap.Error(err))
	}
	defer db.Close()

	index, err := knowledge.NewBoltIndex(db, cfg.LLM.Dimension)
	if err != nil {
		logger.Fatal("failed to build vector index", zap.Error(err))
	}

	// LLM provider
	provider, err := gemini.NewClient(gemini.Config{
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		BaseURL:        cfg.LLM.BaseURL,
		Dimension:      cfg.LLM.Dimension,
		Timeout:        time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		logger.Fatal("failed to create gemini client", zap.Error(err))
	}

	knowledgeSvc, err := knowledge.NewService(index, provider)
	if err != nil {
		logger.Fatal("failed to create knowledge service", zap.Error(err))
	}

	// Notification and ticketing sinks
	notifier, err := notify.NewSlackNotifier(notify.SlackConfig{
		WebhookURL: cfg.Notifications.SlackWebhookURL,
		Channel:    cfg.Notifications.Channel,
		MockMode:   cfg.Notifications.MockMode,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create slack notifier", zap.Error(err))
	}

	ticketer, err := notify.NewTicketingClient(notify.TicketingConfig{
		BaseURL:    cfg.Ticketing.BaseURL,
		APIToken:   cfg.Ticketing.APIToken,
		ProjectKey: cfg.Ticketing.ProjectKey,
		MockMode:   cfg.Ticketing.MockMode,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create ticketing client", zap.Error(err))
	}

	// Orchestrator and server; the server's event hub receives incident
	// lifecycle events from the orchestrator.
	orch, err := orchestrator.New(orchestrator.Deps{
		Store:       store,
		Knowledge:   knowledgeSvc,
		Triage:      stages.NewTriageStage(provider),
		Report:      stages.NewReportStage(provider),
		Postmortem:  stages.NewPostmortemStage(provider),
		Actions:     stages.NewActionStage(provider),
		Suggestions: stages.NewSuggestionsStage(provider),
		Notifier:    notifier,
		Ticketer:    ticketer,
		Audit:       auditLog,
	}, orchestrator.Config{
		SearchLimit:   cfg.Knowledge.SearchLimit,
		MinScore:      cfg.Knowledge.MinScore,
		NotifyChannel: cfg.Notifications.Channel,
	})
	if err != nil {
		logger.Fatal("failed to create orchestrator", zap.Error(err))
	}

	srv, err := server.NewServer(cfg, orch, logger)
	if err != nil {
		logger.Fatal("failed to create server", zap.Error(err))
	}
	orch.SetPublisher(srv.Hub())

	if err := srv.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
	_ = auditLog.Log(ctx, audit.NewEvent(audit.EventServerStarted).
		WithResult(audit.ResultSuccess).
		WithDescription(fmt.Sprintf("Server listening on port %d", cfg.Server.Port)))
	logger.Info("incident bot started",
		zap.Int("port", cfg.Server.Port),
		zap.String("model", cfg.LLM.Model),
		zap.Bool("notifications_mock", cfg.Notifications.MockMode),
		zap.Bool("ticketing_mock", cfg.Ticketing.MockMode))

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("received shutdown signal")

	if err := srv.Stop(); err != nil {
		logger.Error("error stopping server", zap.Error(err))
		os.Exit(1)
	}
	_ = auditLog.Log(ctx, audit.NewEvent(audit.EventServerShutdown).
		WithResult(audit.ResultSuccess).
		WithDescription("Server shut down cleanly"))
	logger.Info("shutdown complete")
}

// newAppLogger builds the application logger from the logging config.
func newAppLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", cfg.Logging.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	if cfg.Logging.Format == "text" {
		zapCfg.Encoding = "console"
	}
	return zapCfg.Build()
}
