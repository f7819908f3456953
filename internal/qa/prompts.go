package qa

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Prompt is a system/user template pair for one generation step
type Prompt struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// PromptSet holds the prompts for one language
type PromptSet struct {
	Question Prompt `yaml:"question"`
	Answer   Prompt `yaml:"answer"`
}

// Prompts maps language codes to prompt sets
type Prompts struct {
	Languages map[string]PromptSet `yaml:"languages"`
}

// QuestionParams are the values available to question templates
type QuestionParams struct {
	Text          string
	MinQuestions  int
	MaxQuestions  int
	QuestionTypes []string
}

// AnswerParams are the values available to answer templates
type AnswerParams struct {
	Text     string
	Question string
}

var funcs = template.FuncMap{
	"join": strings.Join,
}

// DefaultPrompts returns the built-in English and Chinese prompts
func DefaultPrompts() *Prompts {
	p, err := ParsePrompts(defaultPrompts)
	if err != nil {
		panic(fmt.Sprintf("built-in prompts are invalid: %v", err))
	}
	return p
}

// ParsePrompts decodes a prompt document and checks every template compiles
func ParsePrompts(data []byte) (*Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode prompts: %w", err)
	}

	if len(p.Languages) == 0 {
		return nil, fmt.Errorf("%w: no languages defined", ErrInvalidPrompt)
	}

	for lang, set := range p.Languages {
		for name, tmpl := range map[string]string{
			"question.system": set.Question.System,
			"question.user":   set.Question.User,
			"answer.system":   set.Answer.System,
			"answer.user":     set.Answer.User,
		} {
			if strings.TrimSpace(tmpl) == "" && strings.HasSuffix(name, ".user") {
				return nil, fmt.Errorf("%w: %s.%s is empty", ErrInvalidPrompt, lang, name)
			}
			if _, err := template.New(name).Funcs(funcs).Parse(tmpl); err != nil {
				return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalidPrompt, lang, name, err)
			}
		}
	}

	return &p, nil
}

// LoadPrompts reads a prompt file. Languages it does not define keep the
// built-in prompts.
func LoadPrompts(path string) (*Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}

	custom, err := ParsePrompts(data)
	if err != nil {
		return nil, err
	}

	merged := DefaultPrompts()
	for lang, set := range custom.Languages {
		merged.Languages[lang] = set
	}
	return merged, nil
}

// For returns the prompt set for a language
func (p *Prompts) For(language string) (PromptSet, error) {
	set, ok := p.Languages[strings.ToLower(language)]
	if !ok {
		return PromptSet{}, fmt.Errorf("%w: %q (available: %s)", ErrUnsupportedLanguage, language, strings.Join(p.languageNames(), ", "))
	}
	return set, nil
}

func (p *Prompts) languageNames() []string {
	names := make([]string, 0, len(p.Languages))
	for name := range p.Languages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// render executes one template with data
func render(name, tmpl string, data any) (string, error) {
	t, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidPrompt, name, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
