package pipeline

import (
	"github.com/rs/zerolog/log"

	"github.com/dshills/textfission/pkg/types"
)

// AnswerOutcome is the result of answering one generated question
type AnswerOutcome struct {
	Question string
	Answer   *types.Answer
	Err      error
}

// Assemble turns a chunk's answered questions into records, one per
// question, in question order. Questions whose answer failed or is
// incomplete are dropped with a warning; the second return value counts them.
func Assemble(chunk types.Chunk, outcomes []AnswerOutcome) ([]types.QARecord, int) {
	records := make([]types.QARecord, 0, len(outcomes))
	dropped := 0

	for _, o := range outcomes {
		err := o.Err
		if err == nil && o.Answer == nil {
			err = types.ErrEmptyAnswer
		}

		if err == nil {
			rec := types.NewRecord(chunk, o.Question, *o.Answer)
			if err = rec.Validate(); err == nil {
				records = append(records, rec)
				continue
			}
		}

		dropped++
		log.Warn().
			Err(err).
			Int("chunk", chunk.Index).
			Str("source", chunk.Source).
			Str("question", o.Question).
			Msg("dropping question without a usable answer")
	}

	return records, dropped
}
