package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/textfission/internal/storage"
)

func newRunsCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded dataset runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStorage()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTARTED\tSTATUS\tCHUNKS\tFAILED\tRECORDS\tOUTPUT")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status,
					r.ChunksTotal, r.ChunksFailed, r.RecordsCount, r.OutputPath)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show (0 for all)")

	cmd.AddCommand(newRunsShowCmd(a))
	cmd.AddCommand(newRunsClearCacheCmd(a))

	return cmd
}

func newRunsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its chunk failures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStorage()
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(cmd.Context(), args[0])
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("run %s not found", args[0])
			}
			if err != nil {
				return err
			}

			failures, err := store.ListFailures(cmd.Context(), run.ID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "id\t%s\n", run.ID)
			fmt.Fprintf(w, "status\t%s\n", run.Status)
			fmt.Fprintf(w, "sources\t%s\n", strings.Join(run.Sources, ", "))
			fmt.Fprintf(w, "model\t%s/%s\n", run.Provider, run.Model)
			fmt.Fprintf(w, "started\t%s\n", run.StartedAt.Local().Format(time.DateTime))
			fmt.Fprintf(w, "duration\t%s\n", run.Duration().Round(time.Millisecond))
			fmt.Fprintf(w, "chunks\t%d total, %d processed, %d cached, %d failed\n",
				run.ChunksTotal, run.ChunksProcessed, run.ChunksCached, run.ChunksFailed)
			fmt.Fprintf(w, "records\t%d (%d answers dropped)\n", run.RecordsCount, run.AnswersDropped)
			if run.OutputPath != "" {
				fmt.Fprintf(w, "output\t%s (%s)\n", run.OutputPath, run.Format)
			}
			if run.Error != "" {
				fmt.Fprintf(w, "error\t%s\n", run.Error)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			for _, f := range failures {
				fmt.Fprintf(cmd.OutOrStdout(), "  chunk %d %s: %s\n", f.ChunkIndex, f.Source, f.Error)
			}
			return nil
		},
	}
}

func newRunsClearCacheCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-cache",
		Short: "Delete all cached chunk results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStorage()
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.ClearChunkResults(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached chunk results\n", n)
			return nil
		},
	}
}

// openStorage opens the configured database for the history commands
func (a *app) openStorage() (storage.Storage, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Disabled {
		return nil, errors.New("storage is disabled in the configuration")
	}
	return openStorage(cfg)
}
