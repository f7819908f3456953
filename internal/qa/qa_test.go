package qa

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dshills/textfission/internal/llm"
	"github.com/dshills/textfission/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient replies with canned content and records every request
type scriptedClient struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []llm.Request
	model    string
}

func (c *scriptedClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	if len(c.replies) == 0 {
		return nil, errors.New("no scripted reply")
	}
	reply := c.replies[0]
	c.replies = c.replies[1:]
	return &llm.Response{Content: reply}, nil
}

func (c *scriptedClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func (c *scriptedClient) CountTokens(text string) int { return llm.EstimateTokens(text) }
func (c *scriptedClient) Provider() string            { return "test" }
func (c *scriptedClient) Close() error                { return nil }

func (c *scriptedClient) Model() string {
	if c.model == "" {
		return "test-model"
	}
	return c.model
}

func newGenerators(t *testing.T, client llm.Client, opts Options) *Generators {
	t.Helper()
	g, err := New(client, nil, opts)
	require.NoError(t, err)
	return g
}

func TestDefaultPrompts(t *testing.T) {
	p := DefaultPrompts()

	for _, lang := range []string{"en", "zh", "ZH"} {
		set, err := p.For(lang)
		require.NoError(t, err, lang)
		assert.NotEmpty(t, set.Question.User)
		assert.NotEmpty(t, set.Answer.User)
	}

	_, err := p.For("fr")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
	assert.Contains(t, err.Error(), "en, zh")
}

func TestParsePrompts_Invalid(t *testing.T) {
	_, err := ParsePrompts([]byte("languages: {}"))
	assert.ErrorIs(t, err, ErrInvalidPrompt)

	_, err = ParsePrompts([]byte(`
languages:
  en:
    question: {user: "{{.Text"}
    answer: {user: "ok"}
`))
	assert.ErrorIs(t, err, ErrInvalidPrompt)

	_, err = ParsePrompts([]byte(`
languages:
  en:
    question: {user: "q"}
    answer: {system: "only a system prompt"}
`))
	assert.ErrorIs(t, err, ErrInvalidPrompt)

	_, err = ParsePrompts([]byte("languages: [not, a, map]"))
	assert.Error(t, err)
}

func TestLoadPrompts_OverridesOneLanguage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
languages:
  en:
    question:
      user: "List {{.MaxQuestions}} questions about: {{.Text}}"
    answer:
      user: "{{.Text}} / {{.Question}}"
`), 0o644))

	p, err := LoadPrompts(path)
	require.NoError(t, err)

	en, err := p.For("en")
	require.NoError(t, err)
	assert.Equal(t, "List {{.MaxQuestions}} questions about: {{.Text}}", en.Question.User)
	assert.Empty(t, en.Question.System)

	_, err = p.For("zh")
	assert.NoError(t, err, "built-in languages stay available")

	_, err = LoadPrompts(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRender_QuestionPrompt(t *testing.T) {
	set, err := DefaultPrompts().For("en")
	require.NoError(t, err)

	out, err := render("q", set.Question.User, QuestionParams{
		Text:          "Go is a programming language.",
		MinQuestions:  2,
		MaxQuestions:  4,
		QuestionTypes: []string{"factual", "conceptual"},
	})
	require.NoError(t, err)

	assert.Contains(t, out, "between 2 and 4")
	assert.Contains(t, out, "Go is a programming language.")
	assert.Contains(t, out, "factual, conceptual")

	out, err = render("q", set.Question.User, QuestionParams{Text: "x", MaxQuestions: 3})
	require.NoError(t, err)
	assert.Contains(t, out, "generate 3 high-quality")
	assert.NotContains(t, out, "Prefer these question types")
}

func TestRender_Errors(t *testing.T) {
	_, err := render("bad", "{{.Missing}}", AnswerParams{})
	assert.Error(t, err)

	_, err = render("bad", "{{", nil)
	assert.ErrorIs(t, err, ErrInvalidPrompt)
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Options)
		wantErr bool
	}{
		{"defaults", func(o *Options) {}, false},
		{"no language", func(o *Options) { o.Language = "" }, true},
		{"confidence above one", func(o *Options) { o.MinConfidence = 1.5 }, true},
		{"negative confidence", func(o *Options) { o.MinConfidence = -0.1 }, true},
		{"zero max", func(o *Options) { o.MaxQuestions = 0 }, true},
		{"min above max", func(o *Options) { o.MinQuestions = 9 }, true},
		{"zero min", func(o *Options) { o.MinQuestions = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.modify(&opts)
			err := opts.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrConfiguration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFingerprint(t *testing.T) {
	a := DefaultOptions()
	b := DefaultOptions()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.Language = "EN"
	assert.Equal(t, a.Fingerprint(), b.Fingerprint(), "language case is irrelevant")

	b.MaxQuestions = 10
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())

	g1 := newGenerators(t, &scriptedClient{model: "m1"}, a)
	g2 := newGenerators(t, &scriptedClient{model: "m2"}, a)
	g3 := newGenerators(t, &scriptedClient{model: "m1"}, a)
	assert.NotEqual(t, g1.Fingerprint(), g2.Fingerprint(), "model is part of the fingerprint")
	assert.Equal(t, g1.Fingerprint(), g3.Fingerprint())

	zh := a
	zh.Language = "zh"
	g4 := newGenerators(t, &scriptedClient{model: "m1"}, zh)
	assert.NotEqual(t, g1.Fingerprint(), g4.Fingerprint())
}

func TestNew_Errors(t *testing.T) {
	opts := DefaultOptions()
	opts.Language = "fr"
	_, err := New(&scriptedClient{}, nil, opts)
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)

	opts = DefaultOptions()
	opts.MaxQuestions = -1
	_, err = New(&scriptedClient{}, nil, opts)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestQuestionGenerator_Generate(t *testing.T) {
	client := &scriptedClient{replies: []string{
		"```json\n{\"questions\": [\" What is Go? \", \"what is go?\", \"\", \"Who made Go?\", \"Why Go?\", \"When?\", \"Where?\", \"How?\"]}\n```",
	}}
	opts := DefaultOptions()
	g := newGenerators(t, client, opts)

	questions, err := g.Questions.Generate(context.Background(), "Go was designed at Google.")
	require.NoError(t, err)
	assert.Equal(t, []string{"What is Go?", "Who made Go?", "Why Go?", "When?", "Where?"}, questions)

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.True(t, req.JSON)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[1].Content, "Go was designed at Google.")
}

func TestQuestionGenerator_NoQuestions(t *testing.T) {
	client := &scriptedClient{replies: []string{`{"questions": []}`}}
	g := newGenerators(t, client, DefaultOptions())

	questions, err := g.Questions.Generate(context.Background(), "text")
	require.NoError(t, err)
	assert.Empty(t, questions)
}

func TestQuestionGenerator_Errors(t *testing.T) {
	t.Run("unparseable reply", func(t *testing.T) {
		g := newGenerators(t, &scriptedClient{replies: []string{"I cannot help with that."}}, DefaultOptions())
		_, err := g.Questions.Generate(context.Background(), "text")
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})

	t.Run("client failure", func(t *testing.T) {
		g := newGenerators(t, &scriptedClient{err: llm.ErrProviderFailed}, DefaultOptions())
		_, err := g.Questions.Generate(context.Background(), "text")
		assert.ErrorIs(t, err, llm.ErrProviderFailed)
	})
}

func TestAnswerGenerator_Generate(t *testing.T) {
	client := &scriptedClient{replies: []string{
		`Here you go: {"answer": " Google ", "confidence": 0.92, "sources": ["designed at Google", " "]}`,
	}}
	g := newGenerators(t, client, DefaultOptions())

	answer, err := g.Answers.Generate(context.Background(), "Go was designed at Google.", "Who designed Go?")
	require.NoError(t, err)
	assert.Equal(t, "Google", answer.Answer)
	assert.InDelta(t, 0.92, answer.Confidence, 1e-9)
	assert.Equal(t, []string{"designed at Google"}, answer.Sources)

	user := client.requests[0].Messages[1].Content
	assert.Contains(t, user, "Who designed Go?")
	assert.Contains(t, user, "Go was designed at Google.")
}

func TestAnswerGenerator_LowConfidence(t *testing.T) {
	client := &scriptedClient{replies: []string{`{"answer": "maybe", "confidence": 0.3}`}}
	g := newGenerators(t, client, DefaultOptions())

	_, err := g.Answers.Generate(context.Background(), "text", "question?")
	assert.ErrorIs(t, err, ErrLowConfidence)
}

func TestAnswerGenerator_EmptyQuestion(t *testing.T) {
	client := &scriptedClient{}
	g := newGenerators(t, client, DefaultOptions())

	_, err := g.Answers.Generate(context.Background(), "text", "   ")
	assert.ErrorIs(t, err, types.ErrEmptyQuestion)
	assert.Empty(t, client.requests)
}

func TestAnswerGenerator_Chinese(t *testing.T) {
	client := &scriptedClient{replies: []string{`{"answer": "谷歌", "confidence": "95%", "sources": "由谷歌设计"}`}}
	opts := DefaultOptions()
	opts.Language = "zh"
	g := newGenerators(t, client, opts)

	answer, err := g.Answers.Generate(context.Background(), "Go 由谷歌设计。", "谁设计了 Go？")
	require.NoError(t, err)
	assert.Equal(t, "谷歌", answer.Answer)
	assert.InDelta(t, 0.95, answer.Confidence, 1e-9)
	assert.Equal(t, []string{"由谷歌设计"}, answer.Sources)
	assert.True(t, strings.Contains(client.requests[0].Messages[1].Content, "问题"))
}
