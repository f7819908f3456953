package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/dshills/textfission/internal/config"
	"github.com/dshills/textfission/internal/llm"
	"github.com/dshills/textfission/internal/pipeline"
	"github.com/dshills/textfission/internal/qa"
	"github.com/dshills/textfission/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "textfission"

	// ServerVersion is the MCP server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with dataset generation capabilities
type Server struct {
	mcp      *server.MCPServer
	cfg      *config.Config
	storage  storage.Storage // nil when storage is disabled
	client   llm.Client      // nil when built from explicit generators
	pipeline *pipeline.Pipeline
	lock     pipeline.RunLock
}

// NewServer creates a new MCP server from cfg: it opens the run database,
// connects the model client and builds the generation pipeline
func NewServer(cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return nil, err
	}

	client, err := llm.New(cfg.Model.LLM())
	if err != nil {
		closeStorage(store)
		return nil, fmt.Errorf("failed to initialize model client: %w", err)
	}

	gens, err := qa.New(client, nil, cfg.Custom)
	if err != nil {
		_ = client.Close()
		closeStorage(store)
		return nil, err
	}

	s, err := newServer(cfg, store, pipeline.FromQA(gens, client.Provider(), client.Model()))
	if err != nil {
		_ = client.Close()
		closeStorage(store)
		return nil, err
	}
	s.client = client

	log.Info().
		Str("provider", client.Provider()).
		Str("model", client.Model()).
		Bool("storage", store != nil).
		Msg("MCP server initialized")

	return s, nil
}

// newServer wires an MCP server around explicit generators; store may be nil
func newServer(cfg *config.Config, store storage.Storage, gen pipeline.Generators) (*Server, error) {
	var opts []pipeline.Option
	if store != nil {
		opts = append(opts, pipeline.WithStorage(store))
	}

	p, err := pipeline.New(gen, cfg.Processing, opts...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		cfg:      cfg,
		storage:  store,
		pipeline: p,
	}
	s.registerTools()

	return s, nil
}

func openStorage(cfg config.StorageConfig) (storage.Storage, error) {
	if cfg.Disabled {
		return nil, nil
	}

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

func closeStorage(store storage.Storage) {
	if store != nil {
		_ = store.Close()
	}
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(generateDatasetTool(), s.handleGenerateDataset)
	s.mcp.AddTool(chunkTextTool(), s.handleChunkText)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}

// Serve starts the MCP server on stdio and blocks until the client
// disconnects
func (s *Server) Serve(ctx context.Context) error {
	log.Info().Str("name", ServerName).Str("version", ServerVersion).Msg("serving MCP on stdio")
	return server.ServeStdio(s.mcp)
}

// Close releases the model client and the database
func (s *Server) Close() error {
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.storage != nil {
		return s.storage.Close()
	}
	return nil
}
