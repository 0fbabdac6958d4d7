package domain

import "strings"

// Document is a single web result with extracted text.
type Document struct {
	URL   string
	Title string
	Text  string
}

// Chunk is a contiguous slice of normalized source text tagged with its origin.
type Chunk struct {
	URL         string
	Title       string
	ChunkIndex  int
	TotalChunks int
	Content     string
	Place       string
}

// EmbeddedChunk pairs a chunk with its embedding vector. Similarity is populated
// only after ranking against a query vector; it is never persisted.
type EmbeddedChunk struct {
	Chunk
	Embedding  []float64
	Similarity float64
}

// Source identifies a document that contributed to a generated guide.
type Source struct {
	URL        string  `json:"url"`
	Title      string  `json:"title"`
	Similarity float64 `json:"similarity"`
}

// GuideEntry is a previously generated guide retrieved from the cache.
type GuideEntry struct {
	Place     string
	Guide     string
	Sources   []Source
	CreatedAt string
}

// Attraction is a nearby point of interest returned by the maps provider.
type Attraction struct {
	Name     string `json:"name"`
	Rating   string `json:"rating"`
	Vicinity string `json:"vicinity"`
	Photo    string `json:"photo,omitempty"`
}

// MapsData is transient enrichment data; an empty value is well-formed and
// means the lookup found nothing.
type MapsData struct {
	Coordinates string
	Attractions []Attraction
}

// FoldPlace normalizes a free-text place name for use as a lookup key.
// Two names that fold identically collide; that is accepted.
func FoldPlace(place string) string {
	return strings.ToLower(strings.TrimSpace(place))
}

// Slug turns a folded place name into an identifier fragment.
func Slug(place string) string {
	return strings.Join(strings.Fields(FoldPlace(place)), "-")
}
