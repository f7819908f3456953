package qa

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/textfission/internal/llm"
)

// QuestionGenerator asks the model for questions about a chunk of text
type QuestionGenerator struct {
	client llm.Client
	prompt Prompt
	opts   Options
}

// Generate returns up to MaxQuestions distinct questions about text. A reply
// with no questions is not an error.
func (g *QuestionGenerator) Generate(ctx context.Context, text string) ([]string, error) {
	params := QuestionParams{
		Text:          text,
		MinQuestions:  g.opts.MinQuestions,
		MaxQuestions:  g.opts.MaxQuestions,
		QuestionTypes: g.opts.QuestionTypes,
	}

	system, err := render("question.system", g.prompt.System, params)
	if err != nil {
		return nil, err
	}
	user, err := render("question.user", g.prompt.User, params)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Complete(ctx, llm.Request{
		Messages: messages(system, user),
		JSON:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	questions, err := ParseQuestions(resp.Content)
	if err != nil {
		return nil, err
	}

	return normalizeQuestions(questions, g.opts.MaxQuestions), nil
}

// normalizeQuestions trims, drops empty and duplicate questions (ignoring
// case) and keeps at most limit of them
func normalizeQuestions(questions []string, limit int) []string {
	seen := make(map[string]bool, len(questions))
	out := make([]string, 0, len(questions))

	for _, q := range questions {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}

		key := strings.ToLower(q)
		if seen[key] {
			continue
		}
		seen[key] = true

		out = append(out, q)
		if limit > 0 && len(out) == limit {
			break
		}
	}

	return out
}
