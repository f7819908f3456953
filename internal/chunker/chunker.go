package chunker

import (
	"strings"
	"unicode"

	"github.com/dshills/textfission/pkg/types"
)

// Chunker splits text into overlapping chunks of bounded size, preferring
// paragraph and markdown heading boundaries over hard cuts
type Chunker struct {
	size     int
	overlap  int
	markdown bool
}

// block is a run of non-blank lines; end excludes the trailing newline
type block struct {
	start int
	end   int
}

// span is a chunk position before its text is materialised
type span struct {
	start   int
	end     int
	overlap int
}

// New creates a Chunker. Invalid size/overlap settings are rejected here so
// that Split never has to fail.
func New(cfg types.ProcessingConfig) (*Chunker, error) {
	if err := cfg.ValidateChunking(); err != nil {
		return nil, err
	}

	return &Chunker{
		size:     cfg.ChunkSize,
		overlap:  cfg.ChunkOverlap,
		markdown: cfg.Markdown,
	}, nil
}

// Split chunks a text that has no document name
func (c *Chunker) Split(text string) []types.Chunk {
	return c.SplitDocument("", text)
}

// SplitDocument chunks text and tags every chunk with its source name
func (c *Chunker) SplitDocument(source, text string) []types.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return []types.Chunk{}
	}

	spans := c.layout(runes, c.findBlocks(runes))

	chunks := make([]types.Chunk, 0, len(spans))
	for i, s := range spans {
		chunks = append(chunks, types.Chunk{
			Index:   i,
			Source:  source,
			Start:   s.start,
			End:     s.end,
			Overlap: s.overlap,
			Text:    string(runes[s.start:s.end]),
		})
	}

	return chunks
}

// findBlocks divides the text into blocks separated by blank lines and, in
// markdown mode, by heading lines outside fenced code
func (c *Chunker) findBlocks(runes []rune) []block {
	var blocks []block
	cur := block{start: -1}
	inFence := false

	flush := func() {
		if cur.start >= 0 {
			blocks = append(blocks, cur)
		}
		cur = block{start: -1}
	}

	for pos := 0; pos <= len(runes); {
		lineEnd := pos
		for lineEnd < len(runes) && runes[lineEnd] != '\n' {
			lineEnd++
		}
		line := runes[pos:lineEnd]

		if isBlank(line) && !inFence {
			flush()
		} else {
			if c.markdown && !inFence && isHeading(line) {
				flush()
			}
			if c.markdown && isFence(line) {
				inFence = !inFence
			}
			if cur.start < 0 {
				cur.start = pos
			}
			cur.end = lineEnd
		}

		if lineEnd == len(runes) {
			break
		}
		pos = lineEnd + 1
	}
	flush()

	if len(blocks) == 0 {
		// whitespace-only text still has to be covered
		return []block{{start: 0, end: len(runes)}}
	}

	// Trailing whitespace belongs to the last block
	blocks[len(blocks)-1].end = len(runes)

	return blocks
}

// layout places chunk spans over the blocks. Each chunk after the first starts
// exactly c.overlap runes before the end of its predecessor.
func (c *Chunker) layout(runes []rune, blocks []block) []span {
	var spans []span
	start, end := 0, 0 // running buffer is runes[start:end]
	overlap := 0

	emit := func(at int) {
		spans = append(spans, span{start: start, end: at, overlap: overlap})
		start = at - c.overlap
		overlap = c.overlap
	}

	for _, b := range blocks {
		if b.end-start <= c.size {
			end = b.end
			continue
		}

		// Emit the buffer at the block boundary unless it holds nothing
		// beyond the carried overlap
		if end-start > c.overlap {
			emit(end)
			if b.end-start <= c.size {
				end = b.end
				continue
			}
		}

		// The block does not fit even in a fresh buffer: hard split
		for b.end-start > c.size {
			emit(c.cutPoint(runes, start))
		}
		end = b.end
	}

	if end > start || len(spans) == 0 {
		spans = append(spans, span{start: start, end: len(runes), overlap: overlap})
	}

	return spans
}

// cutPoint picks where a hard split starting at start should end. It prefers
// the last whitespace in the back half of the window so words stay whole, and
// always leaves more than c.overlap runes so the next chunk makes progress.
func (c *Chunker) cutPoint(runes []rune, start int) int {
	limit := start + c.size
	floor := start + c.size/2
	if floor <= start+c.overlap {
		floor = start + c.overlap + 1
	}

	for p := limit; p >= floor; p-- {
		if unicode.IsSpace(runes[p]) && !unicode.IsSpace(runes[p-1]) {
			return p
		}
	}

	return limit
}

// Merge reconstructs the original text from chunks by dropping each chunk's
// declared overlap
func Merge(chunks []types.Chunk) string {
	var b strings.Builder
	for _, chunk := range chunks {
		runes := []rune(chunk.Text)
		if chunk.Overlap > len(runes) {
			continue
		}
		b.WriteString(string(runes[chunk.Overlap:]))
	}
	return b.String()
}

func isBlank(line []rune) bool {
	for _, r := range line {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// isHeading reports whether line is an ATX heading (up to three leading
// spaces, one to six '#', then whitespace or end of line)
func isHeading(line []rune) bool {
	i := 0
	for i < len(line) && i < 3 && line[i] == ' ' {
		i++
	}

	hashes := 0
	for i < len(line) && line[i] == '#' {
		hashes++
		i++
	}

	if hashes == 0 || hashes > 6 {
		return false
	}

	return i == len(line) || line[i] == ' ' || line[i] == '\t'
}

func isFence(line []rune) bool {
	trimmed := strings.TrimLeft(string(line), " ")
	return strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
}
