package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/llm"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/models"
)

// ReportStage writes the initial narrative incident report from the
// triaged incident.
type ReportStage struct {
	gen llm.Generator
}

func NewReportStage(gen llm.Generator) *ReportStage {
	return &ReportStage{gen: gen}
}

type reportContext struct {
	IncidentID string
	Title      string
	Severity   string
	Services   string
	Symptoms   string
	Actions    string
}

func (s *ReportStage) Run(ctx context.Context, inc *models.Incident) (string, error) {
	rctx := reportContext{
		IncidentID: inc.ID,
		Title:      inc.Title,
		Severity:   string(inc.Severity),
		Services:   strings.Join(inc.AffectedServices, ", "),
		Symptoms:   strings.Join(inc.Symptoms, "; "),
		Actions:    strings.Join(inc.SuggestedActions, "; "),
	}

	var b strings.Builder
	if err := reportTemplate.Execute(&b, rctx); err != nil {
		return "", fmt.Errorf("render report prompt: %w", err)
	}

	var report string
	err := generateAndParse(ctx, s.gen, "report", b.String(), ReportTemperature, func(raw string) error {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			return fmt.Errorf("empty report text")
		}
		report = trimmed
		return nil
	})
	if err != nil {
		return "", err
	}
	return report, nil
}
