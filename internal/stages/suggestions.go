package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/llm"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/models"
)

// maxSuggestions caps how many remediations one call returns.
const maxSuggestions = 5

// SuggestionsStage synthesizes remediation suggestions for a live
// incident from the similar incidents the knowledge index retrieved.
// It is only invoked when at least one similar incident exists.
type SuggestionsStage struct {
	gen llm.Generator
}

func NewSuggestionsStage(gen llm.Generator) *SuggestionsStage {
	return &SuggestionsStage{gen: gen}
}

type suggestionsContext struct {
	Title       string
	Severity    string
	Services    string
	Symptoms    string
	SimilarPast string
}

func (s *SuggestionsStage) Run(ctx context.Context, inc *models.Incident, similar []models.SimilarityResult) ([]string, error) {
	if len(similar) == 0 {
		return nil, fmt.Errorf("no similar incidents to draw suggestions from")
	}

	var past strings.Builder
	for _, res := range similar {
		fmt.Fprintf(&past, "- %s (%s, score %.2f): %s\n", res.Title, res.Severity, res.Score, res.Snippet)
	}

	sctx := suggestionsContext{
		Title:       inc.Title,
		Severity:    string(inc.Severity),
		Services:    strings.Join(inc.AffectedServices, ", "),
		Symptoms:    strings.Join(inc.Symptoms, "; "),
		SimilarPast: past.String(),
	}

	var b strings.Builder
	if err := suggestionsTemplate.Execute(&b, sctx); err != nil {
		return nil, fmt.Errorf("render suggestions prompt: %w", err)
	}

	var suggestions []string
	err := generateAndParse(ctx, s.gen, "suggestions", b.String(), SuggestionsTemperature, func(raw string) error {
		parsed, err := parseSuggestions(raw)
		if err != nil {
			return err
		}
		suggestions = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return suggestions, nil
}

// parseSuggestions collects bullet lines; a response without a single
// bullet is malformed.
func parseSuggestions(raw string) ([]string, error) {
	var suggestions []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "*") {
			continue
		}
		if s := strings.TrimSpace(line[1:]); s != "" {
			suggestions = append(suggestions, s)
		}
		if len(suggestions) == maxSuggestions {
			break
		}
	}
	if len(suggestions) == 0 {
		return nil, fmt.Errorf("no suggestions found in response")
	}
	return suggestions, nil
}
