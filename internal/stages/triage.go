package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/llm"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/models"
)

// TriageResult is the structured classification of a raw alert.
type TriageResult struct {
	Severity         models.Severity
	Title            string
	AffectedServices []string
	Symptoms         []string
	SuggestedActions []string
}

// TriageStage classifies an incoming alert into severity, title, and
// affected services.
type TriageStage struct {
	gen llm.Generator
}

func NewTriageStage(gen llm.Generator) *TriageStage {
	return &TriageStage{gen: gen}
}

type triageContext struct {
	Service     string
	Message     string
	Metric      string
	Current     string
	Threshold   string
	Environment string
}

func (s *TriageStage) Run(ctx context.Context, alert *models.Alert) (*TriageResult, error) {
	tctx := triageContext{
		Service:     alert.Service,
		Message:     alert.Message,
		Metric:      orNA(alert.Metric),
		Current:     floatOrNA(alert.Current),
		Threshold:   floatOrNA(alert.Threshold),
		Environment: alert.Environment,
	}
	if tctx.Environment == "" {
		tctx.Environment = "production"
	}

	var b strings.Builder
	if err := triageTemplate.Execute(&b, tctx); err != nil {
		return nil, fmt.Errorf("render triage prompt: %w", err)
	}

	var result *TriageResult
	err := generateAndParse(ctx, s.gen, "triage", b.String(), TriageTemperature, func(raw string) error {
		parsed, err := parseTriage(raw)
		if err != nil {
			return err
		}
		result = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// parseTriage validates the line-oriented classification format.
// Severity, title, and affected services are required; anything that
// does not map cleanly is a parse failure, never a default.
func parseTriage(raw string) (*TriageResult, error) {
	result := &TriageResult{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.TrimSpace(key) {
		case "SEVERITY":
			sev, err := models.ParseSeverity(value)
			if err != nil {
				return nil, err
			}
			result.Severity = sev
		case "TITLE":
			result.Title = value
		case "AFFECTED_SERVICES":
			result.AffectedServices = splitList(value)
		case "SYMPTOMS":
			if value != "" {
				result.Symptoms = []string{value}
			}
		case "IMMEDIATE_ACTIONS":
			result.SuggestedActions = splitList(value)
		}
	}

	if result.Severity == "" {
		return nil, fmt.Errorf("missing SEVERITY line")
	}
	if result.Title == "" {
		return nil, fmt.Errorf("missing TITLE line")
	}
	if len(result.AffectedServices) == 0 {
		return nil, fmt.Errorf("missing AFFECTED_SERVICES line")
	}
	return result, nil
}

func splitList(s string) []string {
	if s == "" || strings.EqualFold(s, "none") {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func floatOrNA(f *float64) string {
	if f == nil {
		return "N/A"
	}
	return fmt.Sprintf("%g", *f)
}
