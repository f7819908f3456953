package qa

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/textfission/internal/llm"
	"github.com/dshills/textfission/pkg/types"
)

// AnswerGenerator asks the model to answer one question from a chunk
type AnswerGenerator struct {
	client llm.Client
	prompt Prompt
	opts   Options
}

// Generate answers question using only text. Answers whose confidence is
// below MinConfidence are rejected with ErrLowConfidence.
func (g *AnswerGenerator) Generate(ctx context.Context, text, question string) (*types.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, types.ErrEmptyQuestion
	}

	params := AnswerParams{Text: text, Question: question}

	system, err := render("answer.system", g.prompt.System, params)
	if err != nil {
		return nil, err
	}
	user, err := render("answer.user", g.prompt.User, params)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Complete(ctx, llm.Request{
		Messages: messages(system, user),
		JSON:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	answer, err := ParseAnswer(resp.Content)
	if err != nil {
		return nil, err
	}

	if answer.Confidence < g.opts.MinConfidence {
		return nil, fmt.Errorf("%w: %.2f < %.2f", ErrLowConfidence, answer.Confidence, g.opts.MinConfidence)
	}

	return answer, nil
}
