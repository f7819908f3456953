package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/textfission/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// Run operations

const runColumns = `
	id, sources, provider, model, fingerprint, status,
	chunks_total, chunks_processed, chunks_cached, chunks_failed,
	records_count, answers_dropped, output_path, format, error,
	started_at, finished_at, created_at, updated_at
`

func createRun(ctx context.Context, q querier, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = RunRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	sources, err := encodeStrings(run.Sources)
	if err != nil {
		return err
	}

	now := time.Now()
	_, err = q.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, sources, run.Provider, run.Model, run.Fingerprint, string(run.Status),
		run.ChunksTotal, run.ChunksProcessed, run.ChunksCached, run.ChunksFailed,
		run.RecordsCount, run.AnswersDropped, run.OutputPath, run.Format, run.Error,
		run.StartedAt, nullTime(run.FinishedAt), now, now)
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%w: run %s", ErrAlreadyExists, run.ID)
		}
		return fmt.Errorf("failed to create run: %w", err)
	}

	run.CreatedAt = now
	run.UpdatedAt = now
	return nil
}

func updateRun(ctx context.Context, q querier, run *Run) error {
	sources, err := encodeStrings(run.Sources)
	if err != nil {
		return err
	}

	now := time.Now()
	result, err := q.ExecContext(ctx, `
		UPDATE runs
		SET sources = ?, provider = ?, model = ?, fingerprint = ?, status = ?,
		    chunks_total = ?, chunks_processed = ?, chunks_cached = ?, chunks_failed = ?,
		    records_count = ?, answers_dropped = ?, output_path = ?, format = ?, error = ?,
		    finished_at = ?, updated_at = ?
		WHERE id = ?
	`,
		sources, run.Provider, run.Model, run.Fingerprint, string(run.Status),
		run.ChunksTotal, run.ChunksProcessed, run.ChunksCached, run.ChunksFailed,
		run.RecordsCount, run.AnswersDropped, run.OutputPath, run.Format, run.Error,
		nullTime(run.FinishedAt), now, run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	run.UpdatedAt = now
	return nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var sources, status string
	var finishedAt sql.NullTime

	err := row.Scan(
		&run.ID, &sources, &run.Provider, &run.Model, &run.Fingerprint, &status,
		&run.ChunksTotal, &run.ChunksProcessed, &run.ChunksCached, &run.ChunksFailed,
		&run.RecordsCount, &run.AnswersDropped, &run.OutputPath, &run.Format, &run.Error,
		&run.StartedAt, &finishedAt, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Status = RunStatus(status)
	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time
	}
	if run.Sources, err = decodeStrings(sources); err != nil {
		return nil, err
	}

	return &run, nil
}

func getRun(ctx context.Context, q querier, id string) (*Run, error) {
	row := q.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return run, err
}

func listRuns(ctx context.Context, q querier, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+runColumns+` FROM runs
		ORDER BY started_at DESC, created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// Chunk result operations

func getChunkResult(ctx context.Context, q querier, contentHash [32]byte, fingerprint string) (*ChunkResult, error) {
	result := &ChunkResult{}
	var hash []byte

	err := q.QueryRowContext(ctx, `
		SELECT id, content_hash, fingerprint, questions, answers_dropped, created_at
		FROM chunk_results
		WHERE content_hash = ? AND fingerprint = ?
	`, contentHash[:], fingerprint).Scan(
		&result.ID, &hash, &result.Fingerprint, &result.Questions, &result.AnswersDropped, &result.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	copy(result.ContentHash[:], hash)

	rows, err := q.QueryContext(ctx, `
		SELECT question, answer, confidence, sources
		FROM records
		WHERE chunk_result_id = ?
		ORDER BY position
	`, result.ID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result.Records = []types.QARecord{}
	for rows.Next() {
		var rec types.QARecord
		var sources string
		if err := rows.Scan(&rec.Question, &rec.Answer, &rec.Confidence, &sources); err != nil {
			return nil, err
		}
		if rec.Sources, err = decodeStrings(sources); err != nil {
			return nil, err
		}
		result.Records = append(result.Records, rec)
	}

	return result, rows.Err()
}

// saveChunkResult replaces any result stored under the same hash and
// fingerprint. q must be a transaction.
func saveChunkResult(ctx context.Context, q querier, result *ChunkResult) error {
	if result.Fingerprint == "" {
		return errors.New("chunk result requires a fingerprint")
	}

	if _, err := q.ExecContext(ctx,
		"DELETE FROM chunk_results WHERE content_hash = ? AND fingerprint = ?",
		result.ContentHash[:], result.Fingerprint); err != nil {
		return fmt.Errorf("failed to replace chunk result: %w", err)
	}

	now := time.Now()
	res, err := q.ExecContext(ctx, `
		INSERT INTO chunk_results (content_hash, fingerprint, questions, answers_dropped, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, result.ContentHash[:], result.Fingerprint, result.Questions, result.AnswersDropped, now)
	if err != nil {
		return fmt.Errorf("failed to save chunk result: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for i, rec := range result.Records {
		sources, err := encodeStrings(rec.Sources)
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO records (chunk_result_id, position, question, answer, confidence, sources)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, i, rec.Question, rec.Answer, rec.Confidence, sources); err != nil {
			return fmt.Errorf("failed to save record %d: %w", i, err)
		}
	}

	result.ID = id
	result.CreatedAt = now
	return nil
}

func clearChunkResults(ctx context.Context, q querier) (int, error) {
	res, err := q.ExecContext(ctx, "DELETE FROM chunk_results")
	if err != nil {
		return 0, fmt.Errorf("failed to clear chunk results: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Failure operations

func saveFailure(ctx context.Context, q querier, failure *Failure) error {
	now := time.Now()
	res, err := q.ExecContext(ctx, `
		INSERT INTO failures (run_id, chunk_index, source, error, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, failure.RunID, failure.ChunkIndex, failure.Source, failure.Error, now)
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%w: run %s", ErrNotFound, failure.RunID)
		}
		return fmt.Errorf("failed to save failure: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	failure.ID = id
	failure.CreatedAt = now
	return nil
}

func listFailures(ctx context.Context, q querier, runID string) ([]*Failure, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, run_id, chunk_index, source, error, created_at
		FROM failures
		WHERE run_id = ?
		ORDER BY chunk_index, id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var failures []*Failure
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.ID, &f.RunID, &f.ChunkIndex, &f.Source, &f.Error, &f.CreatedAt); err != nil {
			return nil, err
		}
		failures = append(failures, &f)
	}

	return failures, rows.Err()
}

// Status operations

func getStatus(ctx context.Context, q querier) (*Status, error) {
	status := &Status{
		SchemaVersion: CurrentSchemaVersion,
		BuildMode:     BuildMode,
	}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM runs", &status.RunsCount},
		{"SELECT COUNT(*) FROM runs WHERE status = 'completed'", &status.CompletedRuns},
		{"SELECT COUNT(*) FROM chunk_results", &status.CachedChunks},
		{"SELECT COUNT(*) FROM records", &status.CachedRecords},
		{"SELECT COUNT(*) FROM failures", &status.FailuresCount},
	}
	for _, c := range counts {
		if err := q.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, err
		}
	}
	status.Health.DatabaseAccessible = true

	var applied string
	err := q.QueryRowContext(ctx, "SELECT version FROM schema_version WHERE version = ?", CurrentSchemaVersion).Scan(&applied)
	status.Health.SchemaCurrent = err == nil

	// Calculate database size
	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err == nil {
			status.DatabaseSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
		}
	}

	runs, err := listRuns(ctx, q, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) > 0 {
		status.LastRun = runs[0]
	}

	return status, nil
}

// SQLiteStorage methods

func (s *SQLiteStorage) CreateRun(ctx context.Context, run *Run) error {
	return createRun(ctx, s.db, run)
}

func (s *SQLiteStorage) UpdateRun(ctx context.Context, run *Run) error {
	return updateRun(ctx, s.db, run)
}

func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*Run, error) {
	return getRun(ctx, s.db, id)
}

func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	return listRuns(ctx, s.db, limit)
}

func (s *SQLiteStorage) GetChunkResult(ctx context.Context, contentHash [32]byte, fingerprint string) (*ChunkResult, error) {
	return getChunkResult(ctx, s.db, contentHash, fingerprint)
}

// SaveChunkResult stores result and its records in one transaction
func (s *SQLiteStorage) SaveChunkResult(ctx context.Context, result *ChunkResult) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.SaveChunkResult(ctx, result); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) ClearChunkResults(ctx context.Context) (int, error) {
	return clearChunkResults(ctx, s.db)
}

func (s *SQLiteStorage) SaveFailure(ctx context.Context, failure *Failure) error {
	return saveFailure(ctx, s.db, failure)
}

func (s *SQLiteStorage) ListFailures(ctx context.Context, runID string) ([]*Failure, error) {
	return listFailures(ctx, s.db, runID)
}

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	return getStatus(ctx, s.db)
}

// Transaction methods delegate to the same implementations with the tx querier

func (t *sqliteTx) CreateRun(ctx context.Context, run *Run) error {
	return createRun(ctx, t.tx, run)
}

func (t *sqliteTx) UpdateRun(ctx context.Context, run *Run) error {
	return updateRun(ctx, t.tx, run)
}

func (t *sqliteTx) GetRun(ctx context.Context, id string) (*Run, error) {
	return getRun(ctx, t.tx, id)
}

func (t *sqliteTx) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	return listRuns(ctx, t.tx, limit)
}

func (t *sqliteTx) GetChunkResult(ctx context.Context, contentHash [32]byte, fingerprint string) (*ChunkResult, error) {
	return getChunkResult(ctx, t.tx, contentHash, fingerprint)
}

func (t *sqliteTx) SaveChunkResult(ctx context.Context, result *ChunkResult) error {
	return saveChunkResult(ctx, t.tx, result)
}

func (t *sqliteTx) ClearChunkResults(ctx context.Context) (int, error) {
	return clearChunkResults(ctx, t.tx)
}

func (t *sqliteTx) SaveFailure(ctx context.Context, failure *Failure) error {
	return saveFailure(ctx, t.tx, failure)
}

func (t *sqliteTx) ListFailures(ctx context.Context, runID string) ([]*Failure, error) {
	return listFailures(ctx, t.tx, runID)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*Status, error) {
	return getStatus(ctx, t.tx)
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}

// helpers

func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(data), nil
}

func decodeStrings(data string) ([]string, error) {
	values := []string{}
	if data == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	return values, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// isConstraintError reports whether err came from a UNIQUE or FOREIGN KEY
// constraint. Both drivers include "constraint failed" in the message.
func isConstraintError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "constraint failed")
}
