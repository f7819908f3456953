package qa

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"github.com/dshills/textfission/internal/llm"
	"github.com/dshills/textfission/pkg/types"
)

// Common errors
var (
	ErrInvalidResponse     = errors.New("invalid model response")
	ErrLowConfidence       = errors.New("answer confidence below threshold")
	ErrInvalidPrompt       = errors.New("invalid prompt template")
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// Generation defaults
const (
	DefaultLanguage      = "en"
	DefaultMinConfidence = 0.7
	DefaultMinQuestions  = 3
	DefaultMaxQuestions  = 5
)

// Options controls question and answer generation
type Options struct {
	Language      string   `yaml:"language" json:"language"`
	MinConfidence float64  `yaml:"min_confidence" split_words:"true" json:"min_confidence"`
	MinQuestions  int      `yaml:"min_questions_per_chunk" split_words:"true" json:"min_questions"`
	MaxQuestions  int      `yaml:"max_questions_per_chunk" split_words:"true" json:"max_questions"`
	QuestionTypes []string `yaml:"question_types" split_words:"true" json:"question_types"`
}

// DefaultOptions returns the generation defaults
func DefaultOptions() Options {
	return Options{
		Language:      DefaultLanguage,
		MinConfidence: DefaultMinConfidence,
		MinQuestions:  DefaultMinQuestions,
		MaxQuestions:  DefaultMaxQuestions,
	}
}

// Validate checks the generation options
func (o Options) Validate() error {
	if o.Language == "" {
		return types.ConfigError("language is required")
	}
	if o.MinConfidence < 0 || o.MinConfidence > 1 {
		return types.ConfigError("min confidence must be between 0 and 1, got %g", o.MinConfidence)
	}
	if o.MaxQuestions <= 0 {
		return types.ConfigError("max questions per chunk must be positive, got %d", o.MaxQuestions)
	}
	if o.MinQuestions < 0 || o.MinQuestions > o.MaxQuestions {
		return types.ConfigError("min questions per chunk (%d) must be between 0 and max (%d)", o.MinQuestions, o.MaxQuestions)
	}
	return nil
}

// Fingerprint identifies the options; equal options give equal fingerprints
func (o Options) Fingerprint() string {
	o.Language = strings.ToLower(o.Language)
	data, _ := json.Marshal(o)
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Generators bundles the question and answer generators of one model
type Generators struct {
	Questions *QuestionGenerator
	Answers   *AnswerGenerator

	fingerprint string
}

// New builds both generators for client. A nil prompts uses the built-in set.
func New(client llm.Client, prompts *Prompts, opts Options) (*Generators, error) {
	if prompts == nil {
		prompts = DefaultPrompts()
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	set, err := prompts.For(opts.Language)
	if err != nil {
		return nil, err
	}

	promptData, _ := json.Marshal(set)
	h := sha256.New()
	h.Write([]byte(client.Provider()))
	h.Write([]byte{0})
	h.Write([]byte(client.Model()))
	h.Write([]byte{0})
	h.Write([]byte(opts.Fingerprint()))
	h.Write(promptData)

	return &Generators{
		Questions:   &QuestionGenerator{client: client, prompt: set.Question, opts: opts},
		Answers:     &AnswerGenerator{client: client, prompt: set.Answer, opts: opts},
		fingerprint: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// Fingerprint identifies the model, options and prompts. Cached chunk
// results are only reused when it matches.
func (g *Generators) Fingerprint() string {
	return g.fingerprint
}

func messages(system, user string) []llm.Message {
	var msgs []llm.Message
	if system != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: user})
}
