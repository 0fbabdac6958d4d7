package domain

import "context"

// Embedder converts free text into fixed-dimension vectors via a remote model.
// Dimension is discovered lazily on the first successful embed.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
	Dimension() int
}

// Generator produces completion text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ContentSearcher finds ranked web documents with extracted text.
// It may return fewer documents than requested; documents with empty text
// are the caller's responsibility to discard.
type ContentSearcher interface {
	SearchAndFetch(ctx context.Context, query string, numResults int) ([]Document, error)
}

// AttractionFinder resolves a place to coordinates and nearby attractions.
// Implementations never fail: any error degrades to an empty MapsData.
type AttractionFinder interface {
	LookupAttractions(ctx context.Context, place string) MapsData
}

// Chunker splits normalized text into overlapping word windows.
type Chunker interface {
	Chunk(text string) []string
}
