package textproc

import "strings"

// Default chunking parameters, in words except MinChunkChars.
const (
	DefaultChunkSize = 800
	DefaultOverlap   = 200

	// MinChunkChars discards near-empty tail windows. Windows whose joined
	// character length does not exceed this are dropped.
	MinChunkChars = 100
)

// WordChunker slides a fixed-size word window over text, advancing by
// chunk size minus overlap each step. Deterministic and stateless.
type WordChunker struct {
	chunkSize     int
	overlap       int
	minChunkChars int
}

// NewWordChunker creates a chunker. Non-positive arguments fall back to
// the defaults; an overlap that would prevent forward progress is reduced.
func NewWordChunker(chunkSize, overlap, minChunkChars int) *WordChunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap <= 0 {
		overlap = DefaultOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	if minChunkChars <= 0 {
		minChunkChars = MinChunkChars
	}
	return &WordChunker{chunkSize: chunkSize, overlap: overlap, minChunkChars: minChunkChars}
}

// Chunk splits text on whitespace and emits each window joined back into
// text, skipping windows at or under the minimum character length.
func (c *WordChunker) Chunk(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := c.chunkSize - c.overlap
	var chunks []string
	for i := 0; i < len(words); i += step {
		end := i + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunk := strings.Join(words[i:end], " ")
		if len(chunk) > c.minChunkChars {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}
