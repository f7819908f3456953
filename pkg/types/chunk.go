package types

import (
	"crypto/sha256"
	"errors"
	"unicode/utf8"
)

// Chunk represents a contiguous span of source text produced by the chunker
type Chunk struct {
	// Identification
	Index  int    // Position in the chunk sequence (0-based)
	Source string // Document name the chunk was cut from, may be empty

	// Location, in runes
	Start   int // Offset of the first rune in the source text
	End     int // Offset one past the last rune
	Overlap int // Leading runes shared with the previous chunk

	// Content
	Text string
}

// Len returns the chunk length in runes
func (c Chunk) Len() int {
	return utf8.RuneCountInString(c.Text)
}

// ContentHash returns the SHA-256 hash of the chunk text
func (c Chunk) ContentHash() [32]byte {
	return sha256.Sum256([]byte(c.Text))
}

// Validate checks that the chunk is internally consistent
func (c Chunk) Validate() error {
	if c.Index < 0 {
		return errors.New("chunk index must not be negative")
	}

	if c.Start < 0 || c.End < c.Start {
		return errors.New("chunk offsets are out of order")
	}

	if c.End-c.Start != c.Len() {
		return errors.New("chunk offsets do not match text length")
	}

	if c.Overlap < 0 || c.Overlap > c.Len() {
		return errors.New("chunk overlap exceeds chunk length")
	}

	return nil
}
