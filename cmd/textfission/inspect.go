package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/textfission/internal/chunker"
	"github.com/dshills/textfission/internal/llm"
	"github.com/dshills/textfission/internal/source"
)

func newChunkCmd(a *app) *cobra.Command {
	var (
		chunkSize    int
		chunkOverlap int
		markdown     bool
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "chunk [file]",
		Short: "Show how a file or stdin is split into chunks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			processing := cfg.Processing
			if cmd.Flags().Changed("chunk-size") {
				processing.ChunkSize = chunkSize
			}
			if cmd.Flags().Changed("chunk-overlap") {
				processing.ChunkOverlap = chunkOverlap
			}

			doc, err := readDocument(cmd, args, cfg.Source)
			if err != nil {
				return err
			}
			processing.Markdown = markdown || processing.Markdown || doc.Markdown

			c, err := chunker.New(processing)
			if err != nil {
				return err
			}
			chunks := c.SplitDocument(doc.Name, doc.Text)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(chunks)
			}

			for _, chunk := range chunks {
				fmt.Fprintf(out, "--- chunk %d [%d:%d] length=%d overlap=%d\n", chunk.Index, chunk.Start, chunk.End, chunk.Len(), chunk.Overlap)
				fmt.Fprintln(out, chunk.Text)
			}
			fmt.Fprintf(out, "--- %d chunks\n", len(chunks))
			return nil
		},
	}

	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "maximum chunk length in characters")
	cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 0, "characters shared between consecutive chunks")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "also split at markdown headings")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print chunks as JSON")

	return cmd
}

func newTokensCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tokens [file]",
		Short: "Count the model tokens in a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			doc, err := readDocument(cmd, args, cfg.Source)
			if err != nil {
				return err
			}

			client, err := llm.New(cfg.Model.LLM())
			if err != nil {
				return err
			}
			defer client.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "model\t%s\n", client.Model())
			fmt.Fprintf(w, "characters\t%d\n", len([]rune(doc.Text)))
			fmt.Fprintf(w, "tokens\t%d\n", client.CountTokens(doc.Text))
			fmt.Fprintf(w, "estimate\t%d\n", llm.EstimateTokens(doc.Text))
			return w.Flush()
		},
	}
}

func newEmbedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "embed <text>...",
		Short: "Print embedding vectors for one or more texts as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			client, err := llm.New(cfg.Model.LLM())
			if err != nil {
				return err
			}
			defer client.Close()

			vectors, err := client.Embed(cmd.Context(), args)
			if err != nil {
				return err
			}

			type embedding struct {
				Text       string    `json:"text"`
				Dimensions int       `json:"dimensions"`
				Vector     []float32 `json:"vector"`
			}
			out := make([]embedding, len(vectors))
			for i, v := range vectors {
				out[i] = embedding{Text: args[i], Dimensions: len(v), Vector: v}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func newModelsCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List supported providers and known models",
		RunE: func(cmd *cobra.Command, args []string) error {
			providers := llm.SupportedProviders()
			if provider != "" {
				providers = []string{strings.ToLower(provider)}
			}
			return printModels(cmd.OutOrStdout(), providers)
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "only list models of this provider")
	return cmd
}

func printModels(out io.Writer, providers []string) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tMODEL\tCONTEXT\tKIND")
	for _, p := range providers {
		for _, m := range llm.SupportedModels(p) {
			kind := "chat"
			if m.Embedding {
				kind = "embedding"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", m.Provider, m.Name, m.ContextWindow, kind)
		}
	}
	return w.Flush()
}

// readDocument loads the single file argument, or stdin when there is none
func readDocument(cmd *cobra.Command, args []string, opts source.Options) (source.Document, error) {
	if len(args) == 1 && args[0] != "-" {
		return source.Load(args[0], opts)
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return source.Document{}, fmt.Errorf("failed to read stdin: %w", err)
	}
	return source.FromText("", string(data)), nil
}
