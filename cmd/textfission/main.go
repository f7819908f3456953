package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dshills/textfission/internal/config"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// app carries the state shared by all subcommands
type app struct {
	configPath string
	debug      bool
	cfg        *config.Config
}

func main() {
	root := newRootCmd()
	root.SetContext(context.Background())

	if err := root.Execute(); err != nil {
		fatal(root, err.Error(), 1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "textfission",
		Short:         "Generate question/answer datasets from text",
		Long:          "textfission splits documents into overlapping chunks, asks a language model for questions about each chunk, answers them from the chunk, and exports the pairs as JSON, CSV or text.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(a.debug)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ~/.textfission/config.yaml)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(newGenerateCmd(a))
	root.AddCommand(newChunkCmd(a))
	root.AddCommand(newTokensCmd(a))
	root.AddCommand(newEmbedCmd(a))
	root.AddCommand(newModelsCmd())
	root.AddCommand(newRunsCmd(a))
	root.AddCommand(newServeCmd(a))
	root.AddCommand(newConfigCmd(a))
	root.AddCommand(newVersionCmd())

	return root
}

// loadConfig loads the configuration once per process
func (a *app) loadConfig() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	return cfg, nil
}

// setupLogging sends logs to stderr; stdout carries datasets and the MCP
// protocol
func setupLogging(debug bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

func fatal(cmd *cobra.Command, msg string, code int) {
	if len(msg) > 0 {
		if !strings.HasSuffix(msg, "\n") {
			msg += "\n"
		}
		cmd.PrintErr("Error: " + msg)
	}
	os.Exit(code)
}
