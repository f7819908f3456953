package types

// QARecord is one question/answer pair tied to the chunk it was generated from
type QARecord struct {
	Text       string   `json:"text"`
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
}

// Answer is the structured reply of an answer-generation call
type Answer struct {
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
}

// Validate checks if the record is complete enough to be exported
func (r *QARecord) Validate() error {
	if r.Question == "" {
		return ErrEmptyQuestion
	}

	if r.Answer == "" {
		return ErrEmptyAnswer
	}

	if r.Confidence < 0 || r.Confidence > 1 {
		return ErrInvalidConfidence
	}

	return nil
}

// NewRecord builds a record from a chunk, a question and its answer
func NewRecord(chunk Chunk, question string, answer Answer) QARecord {
	sources := answer.Sources
	if sources == nil {
		sources = []string{}
	}

	return QARecord{
		Text:       chunk.Text,
		Question:   question,
		Answer:     answer.Answer,
		Confidence: answer.Confidence,
		Sources:    sources,
	}
}
