// Package chunker divides raw text into overlapping chunks for question generation.
//
// The chunker prefers natural text boundaries (paragraphs, markdown headings)
// and only falls back to character-count cuts when a single block is too large.
//
// # Basic Usage
//
//	c, err := chunker.New(types.ProcessingConfig{ChunkSize: 1500, ChunkOverlap: 200})
//	if err != nil {
//	    log.Fatal(err) // overlap >= size is rejected here
//	}
//
//	for _, chunk := range c.SplitDocument("guide.md", text) {
//	    fmt.Printf("chunk %d: runes %d-%d (overlap %d)\n",
//	        chunk.Index, chunk.Start, chunk.End, chunk.Overlap)
//	}
//
// # Chunking Strategy
//
// Text is divided into blocks:
//   - Paragraphs: runs of non-blank lines separated by blank lines
//   - Headings: in markdown mode every ATX heading starts a new block,
//     except inside fenced code
//
// Blocks accumulate into a buffer until the next block would push it past
// ChunkSize. The buffer is then emitted and the next buffer starts with the
// last ChunkOverlap runes of the emitted chunk. A block too large for a fresh
// buffer is hard-split, preferably at whitespace in the back half of the
// window.
//
// # Boundary Policy
//
// A chunk emitted at a block boundary ends at the end of the block's last
// non-blank line; the blank lines separating it from the next block belong to
// the next chunk. Every chunk after the first starts exactly ChunkOverlap runes
// before the end of its predecessor, so:
//
//	chunker.Merge(chunks) == text
//
// Sizes and offsets are counted in runes, not bytes.
package chunker
