package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/llm"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/models"
)

// ExtractedAction is one follow-up task pulled from a postmortem,
// before it gets an ID and a ticket.
type ExtractedAction struct {
	Description     string
	Priority        models.Priority
	Category        models.Category
	EstimatedEffort string
}

// ActionStage extracts structured action items from postmortem text.
type ActionStage struct {
	gen llm.Generator
}

func NewActionStage(gen llm.Generator) *ActionStage {
	return &ActionStage{gen: gen}
}

type actionsContext struct {
	Postmortem string
}

func (s *ActionStage) Run(ctx context.Context, postmortem string) ([]ExtractedAction, error) {
	var b strings.Builder
	if err := actionsTemplate.Execute(&b, actionsContext{Postmortem: postmortem}); err != nil {
		return nil, fmt.Errorf("render actions prompt: %w", err)
	}

	var actions []ExtractedAction
	err := generateAndParse(ctx, s.gen, "actions", b.String(), ActionsTemperature, func(raw string) error {
		parsed, err := parseActions(raw)
		if err != nil {
			return err
		}
		actions = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return actions, nil
}

// parseActions validates the ACTION/PRIORITY/CATEGORY/ESTIMATED_EFFORT
// block format. Every block needs a valid priority and category, and a
// response with no action at all is malformed, not an empty list.
func parseActions(raw string) ([]ExtractedAction, error) {
	var actions []ExtractedAction
	var current *ExtractedAction

	flush := func() error {
		if current == nil {
			return nil
		}
		if current.Priority == "" {
			return fmt.Errorf("action %q missing PRIORITY", current.Description)
		}
		if current.Category == "" {
			return fmt.Errorf("action %q missing CATEGORY", current.Description)
		}
		actions = append(actions, *current)
		current = nil
		return nil
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.TrimSpace(key) {
		case "ACTION":
			if err := flush(); err != nil {
				return nil, err
			}
			if value == "" {
				return nil, fmt.Errorf("empty ACTION description")
			}
			current = &ExtractedAction{Description: value}
		case "PRIORITY":
			if current == nil {
				continue
			}
			prio, err := models.ParsePriority(value)
			if err != nil {
				return nil, err
			}
			current.Priority = prio
		case "CATEGORY":
			if current == nil {
				continue
			}
			cat, err := models.ParseCategory(value)
			if err != nil {
				return nil, err
			}
			current.Category = cat
		case "ESTIMATED_EFFORT":
			if current != nil {
				current.EstimatedEffort = value
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	if len(actions) == 0 {
		return nil, fmt.Errorf("no action items found in response")
	}
	return actions, nil
}
