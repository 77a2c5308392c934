// Package stages wraps each language-model call behind a fixed prompt
// template and a strict output schema. A stage renders its template,
// invokes the generation provider at a stage-specific temperature, and
// validates the raw response; malformed output gets exactly one retry
// with a stricter instruction before the stage fails.
package stages

import (
	"context"
	"fmt"

	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/llm"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/metrics"
)

// Sampling temperatures are fixed per stage: low for classification
// and extraction, higher for narrative writing.
const (
	TriageTemperature      float32 = 0.2
	ReportTemperature      float32 = 0.3
	PostmortemTemperature  float32 = 0.5
	ActionsTemperature     float32 = 0.2
	SuggestionsTemperature float32 = 0.4
)

const strictRetrySuffix = "\n\nIMPORTANT: your previous response did not match the required format. Return ONLY valid structured data in the exact format specified above. No commentary, no markdown fences."

// GenerationParseError reports that a stage's output failed schema
// validation even after the retry. RawText carries the first malformed
// response for diagnostics.
type GenerationParseError struct {
	Stage   string
	RawText string
	Err     error
}

func (e *GenerationParseError) Error() string {
	return fmt.Sprintf("stage %s: failed to parse model output: %v", e.Stage, e.Err)
}

func (e *GenerationParseError) Unwrap() error { return e.Err }

// generateAndParse runs one generation call plus the single bounded
// retry. Provider failures are returned as-is and never retried; only
// schema violations earn the second attempt.
func generateAndParse(ctx context.Context, gen llm.Generator, stage, prompt string, temperature float32, parse func(raw string) error) error {
	raw, err := gen.Generate(ctx, prompt, temperature)
	if err != nil {
		return err
	}
	firstErr := parse(raw)
	if firstErr == nil {
		return nil
	}

	metrics.StageRetries.WithLabelValues(stage).Inc()
	retryRaw, err := gen.Generate(ctx, prompt+strictRetrySuffix, temperature)
	if err != nil {
		return err
	}
	if retryErr := parse(retryRaw); retryErr != nil {
		return &GenerationParseError{Stage: stage, RawText: raw, Err: retryErr}
	}
	return nil
}
