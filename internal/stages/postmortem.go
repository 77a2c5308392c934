package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/llm"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/models"
)

// PostmortemOutput is the generated postmortem document plus the
// lessons pulled from its Lessons Learned section.
type PostmortemOutput struct {
	Content        string
	LessonsLearned []string
}

// PostmortemStage writes the blameless postmortem for a resolved
// incident, with similar past incidents folded into the prompt as
// context.
type PostmortemStage struct {
	gen llm.Generator
}

func NewPostmortemStage(gen llm.Generator) *PostmortemStage {
	return &PostmortemStage{gen: gen}
}

type postmortemContext struct {
	IncidentID     string
	Title          string
	Severity       string
	Services       string
	Symptoms       string
	Actions        string
	Report         string
	SimilarContext string
}

func (s *PostmortemStage) Run(ctx context.Context, inc *models.Incident, similar []models.SimilarityResult) (*PostmortemOutput, error) {
	pctx := postmortemContext{
		IncidentID:     inc.ID,
		Title:          inc.Title,
		Severity:       string(inc.Severity),
		Services:       strings.Join(inc.AffectedServices, ", "),
		Symptoms:       strings.Join(inc.Symptoms, "; "),
		Actions:        strings.Join(inc.SuggestedActions, "; "),
		Report:         inc.Report,
		SimilarContext: formatSimilarContext(similar),
	}

	var b strings.Builder
	if err := postmortemTemplate.Execute(&b, pctx); err != nil {
		return nil, fmt.Errorf("render postmortem prompt: %w", err)
	}

	var output *PostmortemOutput
	err := generateAndParse(ctx, s.gen, "postmortem", b.String(), PostmortemTemperature, func(raw string) error {
		parsed, err := parsePostmortem(raw)
		if err != nil {
			return err
		}
		output = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return output, nil
}

func formatSimilarContext(similar []models.SimilarityResult) string {
	if len(similar) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nSIMILAR PAST INCIDENTS:\n")
	for i, res := range similar {
		if i == 3 {
			break
		}
		fmt.Fprintf(&b, "- %s (%s, score %.2f): %s\n", res.Title, res.Severity, res.Score, res.Snippet)
	}
	return b.String()
}

// parsePostmortem requires a sectioned document and collects the
// bullet lines of the Lessons Learned section.
func parsePostmortem(raw string) (*PostmortemOutput, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("empty postmortem text")
	}
	if !strings.Contains(trimmed, "## ") {
		return nil, fmt.Errorf("postmortem has no section headings")
	}

	var lessons []string
	inLessons := false
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "##") {
			inLessons = strings.Contains(line, "Lessons Learned")
			continue
		}
		if inLessons && strings.HasPrefix(line, "-") {
			if lesson := strings.TrimSpace(line[1:]); lesson != "" {
				lessons = append(lessons, lesson)
			}
		}
	}

	return &PostmortemOutput{Content: trimmed, LessonsLearned: lessons}, nil
}
