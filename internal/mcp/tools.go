package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog/log"

	"github.com/dshills/textfission/internal/chunker"
	"github.com/dshills/textfission/internal/exporter"
	"github.com/dshills/textfission/internal/llm"
	"github.com/dshills/textfission/internal/pipeline"
	"github.com/dshills/textfission/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams        = -32602 // Invalid method parameters
	ErrorCodeInternalError        = -32603 // Internal JSON-RPC error
	ErrorCodeSourceNotFound       = -32001 // A source path does not name a readable file
	ErrorCodeGenerationInProgress = -32002 // Another generation is already running
	ErrorCodeEmptyText            = -32004 // Neither text nor paths were given
	ErrorCodeChunkFailures        = -32005 // Chunks failed and fail_on_error was set
	ErrorCodeExportFailed         = -32006 // The dataset could not be written
)

// maxReportedFailures caps the failure messages in a generate response
const maxReportedFailures = 5

// handleGenerateDataset handles the generate_dataset tool invocation
func (s *Server) handleGenerateDataset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	text := getStringDefault(args, "text", "")
	paths, err := getStringSlice(args, "paths")
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "paths must be an array of strings", map[string]interface{}{
			"param":  "paths",
			"reason": err.Error(),
		})
	}

	if text == "" && len(paths) == 0 {
		return nil, newMCPError(ErrorCodeEmptyText, "text or paths is required", map[string]interface{}{
			"param":  "text",
			"reason": "missing or empty",
		})
	}
	if text != "" && len(paths) > 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "text and paths are mutually exclusive", nil)
	}

	for _, p := range paths {
		if err := validatePath(p); err != nil {
			return nil, newMCPError(ErrorCodeSourceNotFound, "invalid path", map[string]interface{}{
				"param":  "paths",
				"path":   p,
				"reason": err.Error(),
			})
		}
	}

	format, err := exporter.ParseFormat(getStringDefault(args, "format", s.cfg.Export.Format))
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid format", map[string]interface{}{
			"param":   "format",
			"reason":  err.Error(),
			"allowed": exporter.Formats(),
		})
	}

	output := getStringDefault(args, "output", "")
	if output != "" && !filepath.IsAbs(output) {
		return nil, newMCPError(ErrorCodeInvalidParams, "output must be an absolute path", map[string]interface{}{
			"param": "output",
			"value": output,
		})
	}

	failOnError := getBoolDefault(args, "fail_on_error", false)
	includeRecords := getBoolDefault(args, "include_records", output == "")

	if !s.lock.TryAcquire() {
		return nil, newMCPError(ErrorCodeGenerationInProgress, "another dataset generation is already running", nil)
	}
	defer s.lock.Release()

	var result *pipeline.Result
	if text != "" {
		result, err = s.pipeline.RunText(ctx, text)
	} else {
		result, err = s.pipeline.RunFiles(ctx, paths, s.cfg.Source)
	}
	if err != nil {
		data := map[string]interface{}{"error": err.Error()}
		if result != nil {
			data["run_id"] = result.Stats.RunID
		}
		return nil, newMCPError(ErrorCodeInternalError, "generation failed", data)
	}

	if failOnError {
		if chunkErr := result.Err(); chunkErr != nil {
			return nil, newMCPError(ErrorCodeChunkFailures, chunkErr.Error(), map[string]interface{}{
				"run_id":   result.Stats.RunID,
				"failures": failureMessages(result.Failures),
			})
		}
	}

	response := map[string]interface{}{
		"run_id":     result.Stats.RunID,
		"statistics": statsResponse(result.Stats),
	}

	if len(result.Failures) > 0 {
		messages := failureMessages(result.Failures)
		if len(messages) > maxReportedFailures {
			response["failures"] = messages[:maxReportedFailures]
			response["failure_count"] = len(messages)
		} else {
			response["failures"] = messages
		}
	}

	if output != "" {
		if err := exporter.Export(result.Records, output, format, s.cfg.Export.ExportOptions()); err != nil {
			return nil, newMCPError(ErrorCodeExportFailed, "export failed", map[string]interface{}{
				"run_id": result.Stats.RunID,
				"error":  err.Error(),
			})
		}
		if err := s.pipeline.MarkExported(ctx, result.Stats.RunID, output, string(format)); err != nil {
			log.Warn().Err(err).Str("run", result.Stats.RunID).Msg("failed to record export")
		}
		response["output"] = output
		response["format"] = format
	}

	if includeRecords {
		records := result.Records
		if records == nil {
			records = []types.QARecord{}
		}
		response["records"] = records
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleChunkText handles the chunk_text tool invocation
func (s *Server) handleChunkText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	text, ok := args["text"].(string)
	if !ok || text == "" {
		return nil, newMCPError(ErrorCodeEmptyText, "text parameter is required", map[string]interface{}{
			"param":  "text",
			"reason": "missing or empty",
		})
	}

	cfg := s.cfg.Processing
	cfg.ChunkSize = getIntDefault(args, "chunk_size", cfg.ChunkSize)
	cfg.ChunkOverlap = getIntDefault(args, "chunk_overlap", cfg.ChunkOverlap)
	cfg.Markdown = getBoolDefault(args, "markdown", cfg.Markdown)
	includeText := getBoolDefault(args, "include_text", true)

	c, err := chunker.New(cfg)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid chunking parameters", map[string]interface{}{
			"chunk_size":    cfg.ChunkSize,
			"chunk_overlap": cfg.ChunkOverlap,
			"reason":        err.Error(),
		})
	}

	chunks := c.Split(text)
	items := make([]map[string]interface{}, 0, len(chunks))
	totalTokens := 0
	for _, chunk := range chunks {
		tokens := s.countTokens(chunk.Text)
		totalTokens += tokens

		item := map[string]interface{}{
			"index":   chunk.Index,
			"start":   chunk.Start,
			"end":     chunk.End,
			"overlap": chunk.Overlap,
			"length":  chunk.Len(),
			"tokens":  tokens,
		}
		if includeText {
			item["text"] = chunk.Text
		}
		items = append(items, item)
	}

	response := map[string]interface{}{
		"chunk_count":   len(chunks),
		"chunk_size":    cfg.ChunkSize,
		"chunk_overlap": cfg.ChunkOverlap,
		"total_tokens":  totalTokens,
		"chunks":        items,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	response := map[string]interface{}{
		"generating": s.lock.Locked(),
	}

	if s.storage == nil {
		response["storage"] = false
		response["message"] = "Storage is disabled; run history and the chunk cache are unavailable."
		return mcp.NewToolResultText(formatJSON(response)), nil
	}

	status, err := s.storage.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response["storage"] = true
	response["statistics"] = map[string]interface{}{
		"runs_count":       status.RunsCount,
		"completed_runs":   status.CompletedRuns,
		"cached_chunks":    status.CachedChunks,
		"cached_records":   status.CachedRecords,
		"failures_count":   status.FailuresCount,
		"database_size_mb": fmt.Sprintf("%.2f", status.DatabaseSizeMB),
	}
	response["health"] = map[string]interface{}{
		"database_accessible": status.Health.DatabaseAccessible,
		"schema_current":      status.Health.SchemaCurrent,
		"schema_version":      status.SchemaVersion,
		"build_mode":          status.BuildMode,
	}

	if run := status.LastRun; run != nil {
		last := map[string]interface{}{
			"id":               run.ID,
			"status":           run.Status,
			"sources":          run.Sources,
			"provider":         run.Provider,
			"model":            run.Model,
			"chunks_total":     run.ChunksTotal,
			"chunks_processed": run.ChunksProcessed,
			"chunks_cached":    run.ChunksCached,
			"chunks_failed":    run.ChunksFailed,
			"records_count":    run.RecordsCount,
			"started_at":       run.StartedAt.Format(time.RFC3339),
		}
		if !run.FinishedAt.IsZero() {
			last["finished_at"] = run.FinishedAt.Format(time.RFC3339)
		}
		if run.OutputPath != "" {
			last["output"] = run.OutputPath
			last["format"] = run.Format
		}
		if run.Error != "" {
			last["error"] = run.Error
		}
		response["last_run"] = last
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

func (s *Server) countTokens(text string) int {
	if s.client != nil {
		return s.client.CountTokens(text)
	}
	return llm.EstimateTokens(text)
}

func statsResponse(st pipeline.Stats) map[string]interface{} {
	return map[string]interface{}{
		"documents":       st.Documents,
		"chunks":          st.Chunks,
		"processed":       st.Processed,
		"cached":          st.Cached,
		"failed":          st.Failed,
		"questions":       st.Questions,
		"records":         st.Records,
		"answers_dropped": st.AnswersDropped,
		"duration_ms":     st.Duration.Milliseconds(),
	}
}

func failureMessages(failures []*types.ChunkError) []string {
	messages := make([]string, len(failures))
	for i, f := range failures {
		messages[i] = f.Error()
	}
	return messages
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that a source path is an absolute, readable file
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	if !info.Mode().IsRegular() {
		return ErrNotRegularFile
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// getStringSlice extracts an optional array of strings. JSON decoding gives
// []interface{}; callers inside the process may pass []string.
func getStringSlice(args map[string]interface{}, key string) ([]string, error) {
	switch val := args[key].(type) {
	case nil:
		return nil, nil
	case []string:
		return val, nil
	case []interface{}:
		out := make([]string, 0, len(val))
		for i, item := range val {
			str, ok := item.(string)
			if !ok || str == "" {
				return nil, fmt.Errorf("element %d is not a non-empty string", i)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("got %T", val)
	}
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotRegularFile  = errors.New("path is not a regular file")
)
