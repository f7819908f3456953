package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dshills/textfission/internal/chunker"
	"github.com/dshills/textfission/internal/fanout"
	"github.com/dshills/textfission/internal/qa"
	"github.com/dshills/textfission/internal/source"
	"github.com/dshills/textfission/internal/storage"
	"github.com/dshills/textfission/pkg/types"
)

// QuestionGenerator produces candidate questions for a chunk of text
type QuestionGenerator interface {
	Generate(ctx context.Context, text string) ([]string, error)
}

// AnswerGenerator answers one question from a chunk of text
type AnswerGenerator interface {
	Generate(ctx context.Context, text, question string) (*types.Answer, error)
}

// Generators is the model-facing half of the pipeline
type Generators struct {
	Questions QuestionGenerator
	Answers   AnswerGenerator

	// Fingerprint identifies the generation settings. Cached chunk results
	// are only reused under the same fingerprint; empty disables the cache.
	Fingerprint string
	Provider    string
	Model       string
}

// FromQA adapts LLM-backed generators
func FromQA(g *qa.Generators, provider, model string) Generators {
	return Generators{
		Questions:   g.Questions,
		Answers:     g.Answers,
		Fingerprint: g.Fingerprint(),
		Provider:    provider,
		Model:       model,
	}
}

// Pipeline coordinates dataset generation: chunk -> questions -> answers -> records
type Pipeline struct {
	gen      Generators
	cfg      types.ProcessingConfig
	storage  storage.Storage
	progress fanout.ProgressFunc
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithStorage enables the chunk result cache and run history
func WithStorage(s storage.Storage) Option {
	return func(p *Pipeline) {
		p.storage = s
	}
}

// WithProgress registers a callback invoked as chunks complete
func WithProgress(fn fanout.ProgressFunc) Option {
	return func(p *Pipeline) {
		p.progress = fn
	}
}

// Stats summarises one run
type Stats struct {
	RunID          string
	Documents      int
	Chunks         int
	Processed      int // Chunks generated or served from cache
	Cached         int
	Failed         int
	Questions      int
	Records        int
	AnswersDropped int
	Duration       time.Duration
}

// Result is the aggregate outcome of a run. Records are ordered by document
// and chunk position regardless of completion order.
type Result struct {
	Records  []types.QARecord
	Failures []*types.ChunkError
	Stats    Stats
}

// Err returns an error describing every failed chunk, or nil. Records of
// the successful chunks are still in Records; the caller decides whether a
// partial dataset is acceptable.
func (r *Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}

	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return fmt.Errorf("%d of %d chunks failed: %w", len(r.Failures), r.Stats.Chunks, errors.Join(errs...))
}

// New creates a Pipeline. cfg is validated here so that Run never fails on
// configuration.
func New(gen Generators, cfg types.ProcessingConfig, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if gen.Questions == nil || gen.Answers == nil {
		return nil, types.ConfigError("question and answer generators are required")
	}

	p := &Pipeline{gen: gen, cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// RunText generates a dataset from in-memory text
func (p *Pipeline) RunText(ctx context.Context, text string) (*Result, error) {
	return p.Run(ctx, []source.Document{source.FromText("", text)})
}

// RunFiles loads paths and generates one dataset from all of them
func (p *Pipeline) RunFiles(ctx context.Context, paths []string, opts source.Options) (*Result, error) {
	docs, err := source.LoadAll(paths, opts)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, docs)
}

// chunkOutcome is what one chunk task produces
type chunkOutcome struct {
	records   []types.QARecord
	questions int
	dropped   int
	cached    bool
}

// Run chunks docs and generates records for every chunk concurrently. A
// failing chunk never aborts its siblings; it is reported in
// Result.Failures. The returned error is non-nil only when ctx was cancelled,
// in which case the partial result is still returned.
func (p *Pipeline) Run(ctx context.Context, docs []source.Document) (*Result, error) {
	start := time.Now()

	chunks, err := p.split(docs)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Records:  []types.QARecord{},
		Failures: []*types.ChunkError{},
		Stats:    Stats{Documents: len(docs), Chunks: len(chunks)},
	}

	run := p.startRun(ctx, docs, len(chunks))
	if run != nil {
		result.Stats.RunID = run.ID
	}

	log.Info().
		Int("documents", len(docs)).
		Int("chunks", len(chunks)).
		Int("workers", p.cfg.MaxWorkers).
		Msg("generating dataset")

	var opts []fanout.Option
	if p.progress != nil {
		opts = append(opts, fanout.WithProgress(p.progress))
	}
	outcomes := fanout.Run(ctx, chunks, p.cfg.MaxWorkers, p.processChunk, opts...)

	for _, o := range outcomes {
		chunk := chunks[o.Index]
		if o.Err != nil {
			result.Failures = append(result.Failures, types.NewChunkError(chunk, o.Err))
			continue
		}

		result.Records = append(result.Records, o.Value.records...)
		result.Stats.Processed++
		result.Stats.Questions += o.Value.questions
		result.Stats.AnswersDropped += o.Value.dropped
		if o.Value.cached {
			result.Stats.Cached++
		}
	}

	result.Stats.Failed = len(result.Failures)
	result.Stats.Records = len(result.Records)
	result.Stats.Duration = time.Since(start)

	runErr := ctx.Err()
	p.finishRun(context.WithoutCancel(ctx), run, result, runErr)

	log.Info().
		Int("records", result.Stats.Records).
		Int("failed", result.Stats.Failed).
		Int("cached", result.Stats.Cached).
		Int("dropped", result.Stats.AnswersDropped).
		Dur("duration", result.Stats.Duration).
		Msg("dataset generated")

	if runErr != nil {
		return result, fmt.Errorf("generation cancelled: %w", runErr)
	}
	return result, nil
}

// split chunks every document, tagging chunks with their document name
func (p *Pipeline) split(docs []source.Document) ([]types.Chunk, error) {
	var chunks []types.Chunk

	for _, doc := range docs {
		cfg := p.cfg
		cfg.Markdown = cfg.Markdown || doc.Markdown

		c, err := chunker.New(cfg)
		if err != nil {
			return nil, err
		}

		docChunks := c.SplitDocument(doc.Name, doc.Text)
		log.Debug().
			Str("source", doc.Name).
			Int("chunks", len(docChunks)).
			Msg("document chunked")
		chunks = append(chunks, docChunks...)
	}

	return chunks, nil
}

// processChunk generates questions, then answers them one by one. Only a
// question-generation failure fails the chunk.
func (p *Pipeline) processChunk(ctx context.Context, _ int, chunk types.Chunk) (chunkOutcome, error) {
	if cached, ok := p.lookup(ctx, chunk); ok {
		return cached, nil
	}

	questions, err := p.gen.Questions.Generate(ctx, chunk.Text)
	if err != nil {
		return chunkOutcome{}, fmt.Errorf("generate questions: %w", err)
	}

	answers := make([]AnswerOutcome, 0, len(questions))
	for _, q := range questions {
		if err := ctx.Err(); err != nil {
			return chunkOutcome{}, err
		}

		answer, err := p.gen.Answers.Generate(ctx, chunk.Text, q)
		answers = append(answers, AnswerOutcome{Question: q, Answer: answer, Err: err})
	}

	// A cancelled chunk has answers failed by cancellation, not by the model
	if err := ctx.Err(); err != nil {
		return chunkOutcome{}, err
	}

	records, dropped := Assemble(chunk, answers)
	outcome := chunkOutcome{
		records:   records,
		questions: len(questions),
		dropped:   dropped,
	}

	p.save(ctx, chunk, outcome)

	log.Debug().
		Int("chunk", chunk.Index).
		Str("source", chunk.Source).
		Int("questions", len(questions)).
		Int("records", len(records)).
		Msg("chunk processed")

	return outcome, nil
}

// lookup serves a chunk from the cache
func (p *Pipeline) lookup(ctx context.Context, chunk types.Chunk) (chunkOutcome, bool) {
	if p.storage == nil || p.gen.Fingerprint == "" {
		return chunkOutcome{}, false
	}

	cached, err := p.storage.GetChunkResult(ctx, chunk.ContentHash(), p.gen.Fingerprint)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn().Err(err).Int("chunk", chunk.Index).Msg("chunk cache lookup failed")
		}
		return chunkOutcome{}, false
	}

	records := make([]types.QARecord, len(cached.Records))
	for i, rec := range cached.Records {
		rec.Text = chunk.Text
		records[i] = rec
	}

	return chunkOutcome{
		records:   records,
		questions: cached.Questions,
		dropped:   cached.AnswersDropped,
		cached:    true,
	}, true
}

// save stores a chunk outcome; failures only cost a future cache miss
func (p *Pipeline) save(ctx context.Context, chunk types.Chunk, outcome chunkOutcome) {
	if p.storage == nil || p.gen.Fingerprint == "" {
		return
	}

	err := p.storage.SaveChunkResult(ctx, &storage.ChunkResult{
		ContentHash:    chunk.ContentHash(),
		Fingerprint:    p.gen.Fingerprint,
		Questions:      outcome.questions,
		AnswersDropped: outcome.dropped,
		Records:        outcome.records,
	})
	if err != nil {
		log.Warn().Err(err).Int("chunk", chunk.Index).Msg("failed to cache chunk result")
	}
}

// startRun records a new run; storage problems never block generation
func (p *Pipeline) startRun(ctx context.Context, docs []source.Document, chunks int) *storage.Run {
	if p.storage == nil {
		return nil
	}

	sources := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.Name != "" {
			sources = append(sources, d.Name)
		}
	}

	run := &storage.Run{
		Sources:     sources,
		Provider:    p.gen.Provider,
		Model:       p.gen.Model,
		Fingerprint: p.gen.Fingerprint,
		Status:      storage.RunRunning,
		ChunksTotal: chunks,
		StartedAt:   time.Now(),
	}
	if err := p.storage.CreateRun(ctx, run); err != nil {
		log.Warn().Err(err).Msg("failed to record run")
		return nil
	}
	return run
}

func (p *Pipeline) finishRun(ctx context.Context, run *storage.Run, result *Result, runErr error) {
	if run == nil {
		return
	}

	s := result.Stats
	run.ChunksProcessed = s.Processed
	run.ChunksCached = s.Cached
	run.ChunksFailed = s.Failed
	run.RecordsCount = s.Records
	run.AnswersDropped = s.AnswersDropped
	run.FinishedAt = time.Now()
	run.Status = runStatus(s, runErr)
	if runErr != nil {
		run.Error = runErr.Error()
	} else if err := result.Err(); err != nil {
		run.Error = firstLine(err.Error())
	}

	if err := p.storage.UpdateRun(ctx, run); err != nil {
		log.Warn().Err(err).Str("run", run.ID).Msg("failed to update run")
	}

	for _, f := range result.Failures {
		failure := &storage.Failure{
			RunID:      run.ID,
			ChunkIndex: f.Index,
			Source:     f.Source,
			Error:      f.Err.Error(),
		}
		if err := p.storage.SaveFailure(ctx, failure); err != nil {
			log.Warn().Err(err).Str("run", run.ID).Msg("failed to record chunk failure")
		}
	}
}

// MarkExported records where a run's dataset was written
func (p *Pipeline) MarkExported(ctx context.Context, runID, path, format string) error {
	if p.storage == nil || runID == "" {
		return nil
	}

	run, err := p.storage.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	run.OutputPath = path
	run.Format = format
	return p.storage.UpdateRun(ctx, run)
}

func runStatus(s Stats, runErr error) storage.RunStatus {
	switch {
	case runErr != nil:
		return storage.RunCancelled
	case s.Failed == 0:
		return storage.RunCompleted
	case s.Processed == 0:
		return storage.RunFailed
	default:
		return storage.RunPartial
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
