package qa

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/textfission/pkg/types"
)

// Models wrap their JSON in various shapes. Question replies are tried as:
//
//	["q1", "q2"]
//	{"questions": ["q1", "q2"]}
//	[{"question": "q1"}, ...]
//	{"questions": [{"question": "q1"}, ...]}

type questionObject struct {
	Question string `json:"question"`
}

type questionList struct {
	Questions []string `json:"questions"`
}

type questionObjectList struct {
	Questions []questionObject `json:"questions"`
}

// ParseQuestions extracts question strings from a model reply
func ParseQuestions(content string) ([]string, error) {
	data := []byte(extractJSON(content))

	var plain []string
	if err := json.Unmarshal(data, &plain); err == nil {
		return plain, nil
	}

	var wrapped questionList
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Questions != nil {
		return wrapped.Questions, nil
	}

	var objects []questionObject
	if err := json.Unmarshal(data, &objects); err == nil {
		return questionTexts(objects), nil
	}

	var wrappedObjects questionObjectList
	if err := json.Unmarshal(data, &wrappedObjects); err == nil && wrappedObjects.Questions != nil {
		return questionTexts(wrappedObjects.Questions), nil
	}

	return nil, fmt.Errorf("%w: no question list in %q", ErrInvalidResponse, preview(content))
}

func questionTexts(objects []questionObject) []string {
	questions := make([]string, len(objects))
	for i, o := range objects {
		questions[i] = o.Question
	}
	return questions
}

// answerReply tolerates confidence as a string and sources as a single string
type answerReply struct {
	Answer     string      `json:"answer"`
	Confidence flexFloat   `json:"confidence"`
	Sources    flexStrings `json:"sources"`
}

// ParseAnswer extracts a structured answer from a model reply. Confidence is
// clamped to [0, 1].
func ParseAnswer(content string) (*types.Answer, error) {
	var reply answerReply
	if err := json.Unmarshal([]byte(extractJSON(content)), &reply); err != nil {
		return nil, fmt.Errorf("%w: %v in %q", ErrInvalidResponse, err, preview(content))
	}

	answer := strings.TrimSpace(reply.Answer)
	if answer == "" {
		return nil, types.ErrEmptyAnswer
	}

	sources := make([]string, 0, len(reply.Sources))
	for _, s := range reply.Sources {
		if s = strings.TrimSpace(s); s != "" {
			sources = append(sources, s)
		}
	}

	return &types.Answer{
		Answer:     answer,
		Confidence: clamp(float64(reply.Confidence)),
		Sources:    sources,
	}, nil
}

// extractJSON strips code fences and any prose around the outermost JSON
// value
func extractJSON(content string) string {
	s := strings.TrimSpace(content)

	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "[{") {
			// drop the language tag line
			rest = rest[nl+1:]
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		s = strings.TrimSpace(rest)
	}

	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return s
	}
	end := strings.LastIndexAny(s, "]}")
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

func preview(s string) string {
	const limit = 120
	r := []rune(strings.TrimSpace(s))
	if len(r) <= limit {
		return string(r)
	}
	return string(r[:limit]) + "..."
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("confidence must be a number: %s", data)
	}
	s = strings.TrimSpace(s)
	percent := strings.HasSuffix(s, "%")
	n, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return fmt.Errorf("confidence must be a number: %q", s)
	}
	if percent {
		n /= 100
	}
	*f = flexFloat(n)
	return nil
}

type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "" {
			*f = []string{s}
		}
		return nil
	}

	if string(data) == "null" {
		return nil
	}
	return fmt.Errorf("sources must be a list of strings: %s", data)
}
