// Package types provides shared type definitions for textfission.
//
// This package defines the domain types passed between the chunker, the
// fan-out executor, the generators, the pipeline and the exporter.
//
// # Core Types
//
// Chunk is a bounded span of the source text. Offsets are counted in runes so
// that multi-byte text (Chinese, for example) is measured by characters:
//
//	chunk := types.Chunk{
//	    Index:   1,
//	    Start:   1300,
//	    End:     1902,
//	    Overlap: 200,
//	    Text:    span,
//	}
//
// QARecord is one exported question/answer pair tied to its source chunk:
//
//	record := types.QARecord{
//	    Text:       chunk.Text,
//	    Question:   "What is Docker?",
//	    Answer:     "An open-source container platform.",
//	    Confidence: 0.92,
//	    Sources:    []string{"Docker is an open-source container platform"},
//	}
//
// # Configuration
//
// ProcessingConfig carries the chunk size, overlap and worker count. It is
// validated once and then passed by value:
//
//	cfg := types.DefaultProcessingConfig()
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Errors
//
// The error taxonomy is expressed as sentinels usable with errors.Is:
//
//	ErrConfiguration      invalid chunk/overlap/worker settings
//	ErrChunkProcessing    one chunk's generation failed (see ChunkError)
//	ErrExport             unwritable destination
//	ErrUnsupportedFormat  unknown export format token
package types
