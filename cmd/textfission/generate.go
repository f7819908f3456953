package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dshills/textfission/internal/config"
	"github.com/dshills/textfission/internal/exporter"
	"github.com/dshills/textfission/internal/llm"
	"github.com/dshills/textfission/internal/pipeline"
	"github.com/dshills/textfission/internal/qa"
	"github.com/dshills/textfission/internal/storage"
)

// generateFlags override configuration values when set on the command line
type generateFlags struct {
	text          string
	output        string
	format        string
	language      string
	prompts       string
	provider      string
	model         string
	chunkSize     int
	chunkOverlap  int
	workers       int
	maxQuestions  int
	minConfidence float64
	markdown      bool
	noCache       bool
	failOnError   bool
}

func newGenerateCmd(a *app) *cobra.Command {
	return generateCmd(a, &generateFlags{})
}

func generateCmd(a *app, f *generateFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [files...]",
		Short: "Generate a question/answer dataset",
		Long: `Generate a dataset from files, from --text, or from standard input.

All files are combined into one dataset. Chunks that fail are reported and
skipped; the records of the other chunks are still exported unless
--fail-on-error is set. Use --output - to write the dataset to stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runGenerate(cmd, cfg, f, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.text, "text", "", "generate from this text instead of files")
	flags.StringVarP(&f.output, "output", "o", "", "output path, or - for stdout")
	flags.StringVarP(&f.format, "format", "f", "", "output format: json, csv or txt (default from the output extension)")
	flags.StringVar(&f.language, "language", "", "prompt language (en, zh)")
	flags.StringVar(&f.prompts, "prompts", "", "YAML file overriding the built-in prompts")
	flags.StringVar(&f.provider, "provider", "", "model provider (openai, deepseek, ollama, custom)")
	flags.StringVar(&f.model, "model", "", "chat model name")
	flags.IntVar(&f.chunkSize, "chunk-size", 0, "maximum chunk length in characters")
	flags.IntVar(&f.chunkOverlap, "chunk-overlap", 0, "characters shared between consecutive chunks")
	flags.IntVarP(&f.workers, "workers", "w", 0, "chunks processed concurrently")
	flags.IntVar(&f.maxQuestions, "max-questions", 0, "maximum questions per chunk")
	flags.Float64Var(&f.minConfidence, "min-confidence", 0, "drop answers below this confidence")
	flags.BoolVar(&f.markdown, "markdown", false, "also split at markdown headings")
	flags.BoolVar(&f.noCache, "no-cache", false, "do not read or record runs and cached chunk results")
	flags.BoolVar(&f.failOnError, "fail-on-error", false, "exit non-zero without exporting when any chunk fails")

	return cmd
}

// apply copies the flags the user set over cfg
func (f *generateFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("output") {
		cfg.Export.Output = f.output
		if !changed("format") {
			if format, err := exporter.FormatFromPath(f.output); err == nil {
				cfg.Export.Format = string(format)
			}
		}
	}
	if changed("format") {
		cfg.Export.Format = f.format
		if !changed("output") && cfg.Export.Output == config.DefaultOutput {
			if format, err := exporter.ParseFormat(f.format); err == nil {
				cfg.Export.Output = strings.TrimSuffix(config.DefaultOutput, filepath.Ext(config.DefaultOutput)) + "." + string(format)
			}
		}
	}
	if changed("language") {
		cfg.Custom.Language = f.language
	}
	if changed("provider") {
		cfg.Model.Provider = f.provider
		if cfg.Model.APIKey == "" {
			cfg.Model.APIKey = llm.APIKeyFromEnv(f.provider)
		}
	}
	if changed("model") {
		cfg.Model.Name = f.model
	}
	if changed("chunk-size") {
		cfg.Processing.ChunkSize = f.chunkSize
	}
	if changed("chunk-overlap") {
		cfg.Processing.ChunkOverlap = f.chunkOverlap
	}
	if changed("workers") {
		cfg.Processing.MaxWorkers = f.workers
	}
	if changed("max-questions") {
		cfg.Custom.MaxQuestions = f.maxQuestions
		if cfg.Custom.MinQuestions > f.maxQuestions {
			cfg.Custom.MinQuestions = f.maxQuestions
		}
	}
	if changed("min-confidence") {
		cfg.Custom.MinConfidence = f.minConfidence
	}
	if changed("markdown") {
		cfg.Processing.Markdown = f.markdown
	}
	if changed("no-cache") {
		cfg.Storage.Disabled = f.noCache
	}
}

func runGenerate(cmd *cobra.Command, cfg *config.Config, f *generateFlags, args []string) error {
	if f.text != "" && len(args) > 0 {
		return errors.New("--text and input files are mutually exclusive")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := llm.New(cfg.Model.LLM())
	if err != nil {
		return err
	}
	defer client.Close()

	var prompts *qa.Prompts
	if f.prompts != "" {
		if prompts, err = qa.LoadPrompts(f.prompts); err != nil {
			return err
		}
	}

	gens, err := qa.New(client, prompts, cfg.Custom)
	if err != nil {
		return err
	}

	opts := []pipeline.Option{
		pipeline.WithProgress(func(done, total int) {
			log.Info().Int("done", done).Int("total", total).Msg("chunk finished")
		}),
	}
	if !cfg.Storage.Disabled {
		store, err := openStorage(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, pipeline.WithStorage(store))
	}

	p, err := pipeline.New(pipeline.FromQA(gens, client.Provider(), client.Model()), cfg.Processing, opts...)
	if err != nil {
		return err
	}

	log.Info().
		Str("provider", client.Provider()).
		Str("model", client.Model()).
		Int("chunk_size", cfg.Processing.ChunkSize).
		Int("workers", cfg.Processing.MaxWorkers).
		Msg("generating dataset")

	result, runErr := generate(ctx, p, cfg, f.text, args, cmd.InOrStdin())
	if result == nil {
		return runErr
	}

	for _, failure := range result.Failures {
		log.Error().Err(failure.Err).Int("chunk", failure.Index).Str("source", failure.Source).Msg("chunk failed")
	}

	if runErr == nil && f.failOnError {
		runErr = result.Err()
	}
	if runErr != nil {
		return runErr
	}

	if err := writeDataset(cmd, p, cfg, result); err != nil {
		return err
	}

	s := result.Stats
	log.Info().
		Int("chunks", s.Chunks).
		Int("cached", s.Cached).
		Int("failed", s.Failed).
		Int("records", s.Records).
		Int("answers_dropped", s.AnswersDropped).
		Dur("duration", s.Duration).
		Msg("dataset complete")

	return nil
}

func generate(ctx context.Context, p *pipeline.Pipeline, cfg *config.Config, text string, paths []string, stdin io.Reader) (*pipeline.Result, error) {
	switch {
	case len(paths) > 0:
		return p.RunFiles(ctx, paths, cfg.Source)
	case text != "":
		return p.RunText(ctx, text)
	default:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return p.RunText(ctx, string(data))
	}
}

func writeDataset(cmd *cobra.Command, p *pipeline.Pipeline, cfg *config.Config, result *pipeline.Result) error {
	format, err := exporter.ParseFormat(cfg.Export.Format)
	if err != nil {
		return err
	}

	if cfg.Export.Output == "-" {
		return exporter.Write(cmd.OutOrStdout(), result.Records, format, cfg.Export.ExportOptions())
	}

	if err := exporter.Export(result.Records, cfg.Export.Output, format, cfg.Export.ExportOptions()); err != nil {
		return err
	}
	log.Info().Str("path", cfg.Export.Output).Str("format", string(format)).Msg("dataset written")

	// Run bookkeeping must not mask a successful export
	if err := p.MarkExported(context.WithoutCancel(cmd.Context()), result.Stats.RunID, cfg.Export.Output, string(format)); err != nil {
		log.Warn().Err(err).Str("run", result.Stats.RunID).Msg("failed to record export")
	}
	return nil
}

func openStorage(cfg *config.Config) (storage.Storage, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	return storage.NewSQLiteStorage(cfg.Storage.Path)
}
