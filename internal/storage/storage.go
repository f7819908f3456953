package storage

import (
	"context"
	"time"

	"github.com/dshills/textfission/pkg/types"
)

// Storage defines the interface for persisting dataset runs and cached
// per-chunk generation results
type Storage interface {
	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	UpdateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	// Chunk result cache operations
	GetChunkResult(ctx context.Context, contentHash [32]byte, fingerprint string) (*ChunkResult, error)
	SaveChunkResult(ctx context.Context, result *ChunkResult) error
	ClearChunkResults(ctx context.Context) (int, error)

	// Failure operations
	SaveFailure(ctx context.Context, failure *Failure) error
	ListFailures(ctx context.Context, runID string) ([]*Failure, error)

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// RunStatus is the lifecycle state of a run
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial" // finished with chunk failures
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Run is one dataset generation over a set of documents
type Run struct {
	ID              string // UUID, assigned by CreateRun when empty
	Sources         []string
	Provider        string
	Model           string
	Fingerprint     string
	Status          RunStatus
	ChunksTotal     int
	ChunksProcessed int
	ChunksCached    int
	ChunksFailed    int
	RecordsCount    int
	AnswersDropped  int
	OutputPath      string
	Format          string
	Error           string
	StartedAt       time.Time
	FinishedAt      time.Time // zero while running
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Duration returns how long the run took, or has taken so far
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ChunkResult is the cached outcome of generating records for one chunk
// text under one generation fingerprint. Records do not store the chunk text;
// callers fill Text from the chunk they looked up.
type ChunkResult struct {
	ID             int64
	ContentHash    [32]byte
	Fingerprint    string
	Questions      int
	AnswersDropped int
	Records        []types.QARecord
	CreatedAt      time.Time
}

// Failure records one chunk that failed during a run
type Failure struct {
	ID         int64
	RunID      string
	ChunkIndex int
	Source     string
	Error      string
	CreatedAt  time.Time
}

// Status contains statistics about the database
type Status struct {
	RunsCount      int
	CompletedRuns  int
	CachedChunks   int
	CachedRecords  int
	FailuresCount  int
	DatabaseSizeMB float64
	LastRun        *Run
	SchemaVersion  string
	BuildMode      string
	Health         HealthStatus
}

// HealthStatus represents the health of the database
type HealthStatus struct {
	DatabaseAccessible bool
	SchemaCurrent      bool
}
