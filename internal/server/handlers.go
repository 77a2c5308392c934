package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/llm"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/models"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/orchestrator"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/stages"
)

// errorResponse is the uniform error body for all endpoints.
type errorResponse struct {
	Error string `json:"error"`
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleIncidents handles POST (alert intake) and GET (listing) on the
// incident collection.
func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateIncident(w, r)
	case http.MethodGet:
		s.handleListIncidents(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleCreateIncident handles POST /api/v1/incidents.
func (s *Server) handleCreateIncident(w http.ResponseWriter, r *http.Request) {
	var alert models.Alert
	if err := json.NewDecoder(r.Body).Decode(&alert); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	inc, err := s.service.ProcessIncident(r.Context(), &alert)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, inc)
}

// handleListIncidents handles GET /api/v1/incidents.
func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	incidents, err := s.service.ListIncidents(r.Context(), limit, offset)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"incidents": incidents,
		"count":     len(incidents),
	})
}

// handleIncidentByID routes GET /api/v1/incidents/{id},
// POST /api/v1/incidents/{id}/postmortem and
// GET /api/v1/incidents/{id}/suggestions.
func (s *Server) handleIncidentByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/incidents/")
	if rest == "" {
		writeError(w, http.StatusNotFound, "incident id is required")
		return
	}

	id, sub, _ := strings.Cut(rest, "/")

	switch {
	case sub == "" && r.Method == http.MethodGet:
		s.handleGetIncident(w, r, id)
	case sub == "postmortem" && r.Method == http.MethodPost:
		s.handleGeneratePostmortem(w, r, id)
	case sub == "suggestions" && r.Method == http.MethodGet:
		s.handleSuggestSolutions(w, r, id)
	case sub == "" || sub == "postmortem" || sub == "suggestions":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		writeError(w, http.StatusNotFound, "unknown resource")
	}
}

// handleGetIncident handles GET /api/v1/incidents/{id}.
func (s *Server) handleGetIncident(w http.ResponseWriter, r *http.Request, id string) {
	inc, err := s.service.GetIncident(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, inc)
}

// handleGeneratePostmortem handles POST /api/v1/incidents/{id}/postmortem.
func (s *Server) handleGeneratePostmortem(w http.ResponseWriter, r *http.Request, id string) {
	result, err := s.service.GeneratePostmortem(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleSuggestSolutions handles GET /api/v1/incidents/{id}/suggestions.
func (s *Server) handleSuggestSolutions(w http.ResponseWriter, r *http.Request, id string) {
	suggestions, err := s.service.SuggestSolutions(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if suggestions == nil {
		suggestions = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"incident_id": id,
		"suggestions": suggestions,
	})
}

// handleKnowledgeStats handles GET /api/v1/knowledge/stats.
func (s *Server) handleKnowledgeStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	count, err := s.service.KnowledgeStats()
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"indexed_incidents": count})
}

// writeServiceError maps pipeline errors onto HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var (
		notFound   *models.NotFoundError
		badState   *models.InvalidStateError
		parseErr   *stages.GenerationParseError
		providerEr *llm.ProviderError
	)

	switch {
	case errors.Is(err, orchestrator.ErrInvalidAlert):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &badState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &parseErr), errors.As(err, &providerEr):
		// Upstream model failures are not the caller's fault.
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
