package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/ftbhabuk/yatra/internal/domain"
	"github.com/ftbhabuk/yatra/internal/textproc"
	"github.com/ftbhabuk/yatra/internal/vectorstore"
)

// EmbedBatchSize is the number of chunks embedded per batch request.
const EmbedBatchSize = 10

// CachedChunkLimit bounds how many previously ingested chunks a cache read
// returns. A non-empty read short-circuits the ingestion path even though
// the result may be a subset of what was stored.
const CachedChunkLimit = 10

// DefaultMinDocumentWords discards documents whose normalized text is too
// short to contribute useful chunks.
const DefaultMinDocumentWords = 30

// ChunkStore maps a place to its ingested, embedded document chunks.
// On a miss it runs the full ingestion path: web search, normalization,
// chunking, embedding, and persistence.
type ChunkStore struct {
	store       vectorstore.Store
	embedder    domain.Embedder
	searcher    domain.ContentSearcher
	chunker     domain.Chunker
	indexName   string
	qualifier   string
	numResults  int
	minDocWords int
	logger      *log.Logger
	now         func() time.Time
}

// ChunkStoreConfig configures a ChunkStore.
type ChunkStoreConfig struct {
	Store            vectorstore.Store
	Embedder         domain.Embedder
	Searcher         domain.ContentSearcher
	Chunker          domain.Chunker
	IndexName        string
	Qualifier        string
	NumResults       int
	MinDocumentWords int
	Logger           *log.Logger
}

// NewChunkStore creates a chunk store.
func NewChunkStore(cfg ChunkStoreConfig) *ChunkStore {
	if cfg.NumResults == 0 {
		cfg.NumResults = 7
	}
	if cfg.MinDocumentWords == 0 {
		cfg.MinDocumentWords = DefaultMinDocumentWords
	}
	if cfg.Chunker == nil {
		cfg.Chunker = textproc.NewWordChunker(0, 0, 0)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &ChunkStore{
		store:       cfg.Store,
		embedder:    cfg.Embedder,
		searcher:    cfg.Searcher,
		chunker:     cfg.Chunker,
		indexName:   cfg.IndexName,
		qualifier:   cfg.Qualifier,
		numResults:  cfg.NumResults,
		minDocWords: cfg.MinDocumentWords,
		logger:      cfg.Logger,
		now:         time.Now,
	}
}

// Get queries the chunk index for previously ingested chunks of place.
// Store scores are reused as similarity, not recomputed.
func (s *ChunkStore) Get(ctx context.Context, place string) ([]domain.EmbeddedChunk, error) {
	query := readQuery(place, s.qualifier)
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	ix, err := s.store.EnsureIndex(ctx, s.indexName, len(vec))
	if err != nil {
		return nil, err
	}
	matches, err := ix.Query(ctx, vec, map[string]string{"place": domain.FoldPlace(place)}, CachedChunkLimit, true)
	if err != nil {
		return nil, err
	}
	chunks := make([]domain.EmbeddedChunk, 0, len(matches))
	for _, m := range matches {
		chunks = append(chunks, chunkFromMetadata(m))
	}
	return chunks, nil
}

// GetOrIngest returns cached chunks when any exist, otherwise runs the
// ingestion path and returns its ranked output.
func (s *ChunkStore) GetOrIngest(ctx context.Context, place string) ([]domain.EmbeddedChunk, error) {
	chunks, err := s.Get(ctx, place)
	if err != nil {
		return nil, err
	}
	if len(chunks) > 0 {
		return chunks, nil
	}
	return s.ingest(ctx, place)
}

// ingest gathers web evidence for place, converts it into embedded chunks,
// persists them, and returns the chunks ranked by similarity to the search
// query, descending.
func (s *ChunkStore) ingest(ctx context.Context, place string) ([]domain.EmbeddedChunk, error) {
	query := searchQuery(place, s.qualifier)
	docs, err := s.searcher.SearchAndFetch(ctx, query, s.numResults)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w for %q", domain.ErrNoResults, qualified(place, s.qualifier))
	}

	folded := domain.FoldPlace(place)
	var chunks []domain.Chunk
	for _, doc := range docs {
		if doc.Text == "" {
			continue
		}
		cleaned := textproc.Normalize(doc.Text)
		if textproc.WordCount(cleaned) < s.minDocWords {
			continue
		}
		parts := s.chunker.Chunk(cleaned)
		for i, content := range parts {
			chunks = append(chunks, domain.Chunk{
				URL:         doc.URL,
				Title:       doc.Title,
				ChunkIndex:  i,
				TotalChunks: len(parts),
				Content:     content,
				Place:       folded,
			})
		}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w for %q", domain.ErrNoContent, qualified(place, s.qualifier))
	}

	// Embed in batches; a failed batch contributes nothing but does not
	// abort the run.
	var embedded []domain.EmbeddedChunk
	for i := 0; i < len(chunks); i += EmbedBatchSize {
		end := i + EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[i:end]
		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Content
		}
		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			s.logger.Printf("chunk store: embedding batch %d for %q failed: %v", i/EmbedBatchSize, place, err)
			continue
		}
		for j, vec := range vectors {
			if len(vec) == 0 {
				continue
			}
			embedded = append(embedded, domain.EmbeddedChunk{Chunk: batch[j], Embedding: vec})
		}
	}
	if len(embedded) == 0 {
		return nil, fmt.Errorf("%w for %q", domain.ErrEmbeddingFailed, qualified(place, s.qualifier))
	}

	ix, err := s.store.EnsureIndex(ctx, s.indexName, len(embedded[0].Embedding))
	if err != nil {
		return nil, err
	}
	stamp := s.now().UnixMilli()
	records := make([]vectorstore.Record, len(embedded))
	for i, ec := range embedded {
		records[i] = vectorstore.Record{
			ID:       fmt.Sprintf("%s-%d-%d", folded, stamp, i),
			Values:   ec.Embedding,
			Metadata: chunkMetadata(ec.Chunk),
		}
	}
	for i := 0; i < len(records); i += vectorstore.UpsertBatchSize {
		end := i + vectorstore.UpsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		if err := ix.Upsert(ctx, records[i:end]); err != nil {
			return nil, err
		}
	}

	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	for i := range embedded {
		embedded[i].Similarity = cosineSimilarity(qvec, embedded[i].Embedding)
	}
	sort.SliceStable(embedded, func(i, j int) bool {
		return embedded[i].Similarity > embedded[j].Similarity
	})
	return embedded, nil
}

func chunkMetadata(c domain.Chunk) map[string]string {
	return map[string]string{
		"url":         c.URL,
		"title":       c.Title,
		"chunkIndex":  strconv.Itoa(c.ChunkIndex),
		"totalChunks": strconv.Itoa(c.TotalChunks),
		"content":     c.Content,
		"place":       c.Place,
	}
}

func chunkFromMetadata(m vectorstore.Match) domain.EmbeddedChunk {
	md := m.Metadata
	index, _ := strconv.Atoi(md["chunkIndex"])
	total, _ := strconv.Atoi(md["totalChunks"])
	return domain.EmbeddedChunk{
		Chunk: domain.Chunk{
			URL:         md["url"],
			Title:       md["title"],
			ChunkIndex:  index,
			TotalChunks: total,
			Content:     md["content"],
			Place:       md["place"],
		},
		Similarity: m.Score,
	}
}

// readQuery is the chunk-index retrieval query. It carries one extra term
// relative to the web search query; ingestion ranks against the search
// query, reads against this one.
func readQuery(place, qualifier string) string {
	return searchQuery(place, qualifier) + " information"
}

func qualified(place, qualifier string) string {
	if qualifier == "" {
		return place
	}
	return place + ", " + qualifier
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
