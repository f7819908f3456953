package types

import (
	"errors"
	"fmt"
)

// Error taxonomy
var (
	// ErrConfiguration is returned for invalid chunk, overlap or worker settings
	ErrConfiguration = errors.New("configuration error")
	// ErrChunkProcessing marks a single chunk whose generation failed
	ErrChunkProcessing = errors.New("chunk processing error")
	// ErrExport is returned when a dataset cannot be written
	ErrExport = errors.New("export error")
	// ErrUnsupportedFormat is returned for an unknown export format token
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// Record validation errors
var (
	ErrEmptyQuestion     = errors.New("question cannot be empty")
	ErrEmptyAnswer       = errors.New("answer cannot be empty")
	ErrInvalidConfidence = errors.New("confidence must be between 0 and 1")
)

// ConfigError wraps a configuration problem so it matches ErrConfiguration
func ConfigError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// ChunkError records the failure of one chunk's generation task
type ChunkError struct {
	Index  int
	Source string
	Err    error
}

// NewChunkError creates a ChunkError for the chunk at index
func NewChunkError(chunk Chunk, err error) *ChunkError {
	return &ChunkError{Index: chunk.Index, Source: chunk.Source, Err: err}
}

func (e *ChunkError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("chunk %d of %s: %v", e.Index, e.Source, e.Err)
	}
	return fmt.Sprintf("chunk %d: %v", e.Index, e.Err)
}

// Unwrap exposes both the taxonomy sentinel and the underlying cause
func (e *ChunkError) Unwrap() []error {
	return []error{ErrChunkProcessing, e.Err}
}
