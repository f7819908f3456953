// Package pipeline turns documents into question/answer datasets.
//
// A run chunks every document, then processes the chunks on a bounded
// worker pool. Within one chunk the steps are sequential: generate
// questions, then answer each question from the chunk text.
//
//	p, err := pipeline.New(pipeline.FromQA(gens, "openai", "gpt-4o-mini"), cfg,
//	    pipeline.WithStorage(db))
//	if err != nil {
//	    return err
//	}
//	result, err := p.RunFiles(ctx, []string{"notes.md"}, source.Options{})
//	if err != nil {
//	    return err // cancelled
//	}
//	if err := result.Err(); err != nil {
//	    log.Warn().Err(err).Msg("partial dataset")
//	}
//
// # Failure handling
//
// A chunk fails only when question generation fails. Its error is recorded
// in Result.Failures and its siblings keep running. A question whose answer
// fails, or whose confidence is too low, is dropped and counted in
// Stats.AnswersDropped.
//
// # Caching
//
// With storage configured, each chunk's records are cached under the
// SHA-256 of the chunk text and the generators' fingerprint. Re-running the
// same documents with the same model, language, limits and prompts costs no
// model calls. Every run is recorded with its statistics and failed chunks.
package pipeline
