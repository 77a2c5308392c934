// Package knowledge maintains the semantic memory of past incidents:
// resolved incidents are embedded and indexed so that future ones can
// retrieve similar failures regardless of the vocabulary used to
// describe them.
package knowledge

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/llm"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/models"
)

const snippetLength = 200

// EmbeddingError reports a failure to embed or index an incident. It
// degrades future retrieval but never blocks the incident being
// processed, so callers log it and continue.
type EmbeddingError struct {
	IncidentID string
	Err        error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed for incident %s: %v", e.IncidentID, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// Service ties an embedding provider to the vector index.
type Service struct {
	index    VectorIndex
	embedder llm.Embedder
}

// NewService wires the embedder to the index. The embedder's output
// size must match the index's dimensionality; a mismatch means the
// deployment is misconfigured and nothing stored would ever match, so
// it is rejected here rather than on each call.
func NewService(index VectorIndex, embedder llm.Embedder) (*Service, error) {
	if bolt, ok := index.(*BoltIndex); ok {
		if bolt.dimension != embedder.Dimension() {
			return nil, fmt.Errorf("index dimension %d does not match embedder dimension %d",
				bolt.dimension, embedder.Dimension())
		}
	}
	return &Service{index: index, embedder: embedder}, nil
}

// IndexIncident embeds the incident's document text and upserts it
// into the index, keyed by incident ID so re-indexing supersedes the
// previous record.
func (s *Service) IndexIncident(ctx context.Context, inc *models.Incident) error {
	doc := buildDocument(inc)

	vector, err := s.embedder.Embed(ctx, doc)
	if err != nil {
		return &EmbeddingError{IncidentID: inc.ID, Err: err}
	}

	meta := map[string]string{
		"title":    inc.Title,
		"severity": string(inc.Severity),
		"services": strings.Join(inc.AffectedServices, ","),
		"created":  inc.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}

	if err := s.index.Upsert(Record{
		ID:       inc.ID,
		Vector:   vector,
		Metadata: meta,
		Document: doc,
	}); err != nil {
		return &EmbeddingError{IncidentID: inc.ID, Err: err}
	}
	return nil
}

// SearchSimilarIncidents embeds the query text and returns up to limit
// past incidents scoring at or above minScore, most similar first.
// selfID, if non-empty, is filtered from the results so an incident
// never retrieves itself. An empty index yields an empty result, not
// an error.
func (s *Service) SearchSimilarIncidents(ctx context.Context, queryText string, limit int, minScore float64, selfID string) ([]models.SimilarityResult, error) {
	if limit <= 0 {
		return nil, nil
	}

	vector, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, &EmbeddingError{IncidentID: selfID, Err: err}
	}

	// Over-fetch by one so a self-match does not cost a result slot.
	matches, err := s.index.Query(vector, limit+1)
	if err != nil {
		return nil, err
	}

	results := make([]models.SimilarityResult, 0, limit)
	for _, m := range matches {
		if m.ID == selfID {
			continue
		}
		if m.Score < minScore {
			continue
		}
		results = append(results, models.SimilarityResult{
			IncidentID: m.ID,
			Title:      m.Metadata["title"],
			Severity:   models.Severity(m.Metadata["severity"]),
			Services:   splitServices(m.Metadata["services"]),
			Score:      m.Score,
			Snippet:    snippet(m.Document),
		})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// IncidentCount reports the number of indexed incidents.
func (s *Service) IncidentCount() (int, error) {
	return s.index.Count()
}

// buildDocument is the canonical text an incident is embedded under.
func buildDocument(inc *models.Incident) string {
	var b strings.Builder
	b.WriteString(inc.Title)
	b.WriteString("\n")
	b.WriteString(inc.Description)
	if len(inc.AffectedServices) > 0 {
		b.WriteString("\nServices: ")
		b.WriteString(strings.Join(inc.AffectedServices, ", "))
	}
	if len(inc.Symptoms) > 0 {
		b.WriteString("\nSymptoms: ")
		b.WriteString(strings.Join(inc.Symptoms, "; "))
	}
	if inc.Postmortem != "" {
		b.WriteString("\n")
		b.WriteString(inc.Postmortem)
	}
	return b.String()
}

func snippet(doc string) string {
	doc = strings.ReplaceAll(doc, "\n", " ")
	if len(doc) <= snippetLength {
		return doc
	}
	// Back up to a rune boundary so the cut never splits a multibyte
	// character.
	cut := snippetLength
	for cut > 0 && !utf8.RuneStart(doc[cut]) {
		cut--
	}
	return doc[:cut]
}

func splitServices(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
