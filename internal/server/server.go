// Package server exposes the incident pipeline over HTTP: REST
// endpoints for alert intake and postmortem generation, Prometheus
// metrics, and a WebSocket feed of incident lifecycle events.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/config"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/middleware"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/models"
)

// IncidentService is the part of the orchestrator the HTTP layer needs.
type IncidentService interface {
	ProcessIncident(ctx context.Context, alert *models.Alert) (*models.Incident, error)
	GeneratePostmortem(ctx context.Context, incidentID string) (*models.PostmortemResult, error)
	SuggestSolutions(ctx context.Context, incidentID string) ([]string, error)
	GetIncident(ctx context.Context, id string) (*models.Incident, error)
	ListIncidents(ctx context.Context, limit, offset int) ([]*models.Incident, error)
	KnowledgeStats() (int, error)
}

// Server hosts the incident-bot HTTP API.
type Server struct {
	config  *config.Config
	service IncidentService
	logger  *zap.Logger
	hub     *EventHub
	limiter *middleware.RateLimiter

	httpServer *http.Server

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// State
	mu      sync.RWMutex
	running bool
}

// NewServer creates a new incident-bot server.
func NewServer(cfg *config.Config, service IncidentService, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("incident service cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	srv := &Server{
		config:  cfg,
		service: service,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	srv.hub = newEventHub(ctx, logger)
	if cfg.Server.RateLimitPerMinute > 0 {
		srv.limiter = middleware.NewRateLimiter(cfg.Server.RateLimitPerMinute)
	}

	return srv, nil
}

// Hub returns the live event feed. The orchestrator publishes incident
// lifecycle events into it.
func (s *Server) Hub() *EventHub {
	return s.hub
}

// Start starts the server.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.mu.Unlock()

	mux := http.NewServeMux()
	s.registerHandlers(mux)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // postmortem generation spans several LLM calls
		IdleTimeout:  120 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("starting HTTP server", zap.Int("port", s.config.Server.Port))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is not running")
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("stopping server")

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error shutting down HTTP server", zap.Error(err))
		}
	}

	if s.limiter != nil {
		s.limiter.Stop()
	}

	s.cancel()
	s.wg.Wait()

	s.logger.Info("server stopped")
	return nil
}

// Wait blocks until the server is stopped.
func (s *Server) Wait() {
	<-s.ctx.Done()
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// registerHandlers registers HTTP handlers.
func (s *Server) registerHandlers(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("/healthz", s.handleHealth)

	// Incident endpoints, rate limited when configured; alert intake
	// fans out into model calls.
	mux.Handle("/api/v1/incidents", s.withRateLimit(http.HandlerFunc(s.handleIncidents)))
	mux.Handle("/api/v1/incidents/", s.withRateLimit(http.HandlerFunc(s.handleIncidentByID)))

	// Knowledge endpoints
	mux.HandleFunc("/api/v1/knowledge/stats", s.handleKnowledgeStats)

	// Live incident event feed
	mux.HandleFunc("/ws/incidents", s.handleWebSocket)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return s.limiter.Wrap(next)
}
