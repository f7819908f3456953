// Package storage provides SQLite-based persistence for dataset runs and
// cached generation results.
//
// The storage layer manages:
//   - Run history (sources, model, counters, output location)
//   - Per-chunk generation results keyed by content hash and fingerprint
//   - Failed chunks per run
//
// # Database Schema
//
// Tables:
//   - runs: One row per generate invocation
//   - chunk_results: Cached outcome for a chunk text under a generation fingerprint
//   - records: Question/answer rows of a cached chunk result
//   - failures: Chunks that failed during a run
//
// The fingerprint covers provider, model, language, question limits and the
// prompt templates. Changing any of them misses the cache instead of
// returning stale records.
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.textfission/textfission.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	run := &storage.Run{Sources: []string{"notes.md"}, Model: "gpt-4o-mini"}
//	if err := db.CreateRun(ctx, run); err != nil {
//	    return err
//	}
//
//	cached, err := db.GetChunkResult(ctx, chunk.ContentHash(), fingerprint)
//	if errors.Is(err, storage.ErrNotFound) {
//	    // generate and SaveChunkResult
//	}
//
// # Build Tags
//
// The default build uses modernc.org/sqlite and needs no C compiler:
//
//	CGO_ENABLED=0 go build ./...
//
// The sqlite_cgo tag switches to github.com/mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags "sqlite_cgo" ./...
package storage
