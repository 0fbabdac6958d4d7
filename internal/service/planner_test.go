package service_test

import (
	"context"
	"errors"
	"hash/fnv"
	"io"
	"log"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftbhabuk/yatra/internal/domain"
	"github.com/ftbhabuk/yatra/internal/service"
	"github.com/ftbhabuk/yatra/internal/textproc"
	"github.com/ftbhabuk/yatra/internal/vectorstore"
	"github.com/ftbhabuk/yatra/internal/vectorstore/memory"
)

func embedVec(text string) []float64 {
	h := fnv.New32a()
	h.Write([]byte(text))
	x := float64(h.Sum32()%997) + 1
	return []float64{x, x / 2, math.Sqrt(x), 1}
}

type fakeEmbedder struct {
	mu             sync.Mutex
	embedCalls     int
	embedTexts     []string
	batchCalls     int
	failBatch      map[int]bool
	failAllBatches bool
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	f.mu.Lock()
	f.embedCalls++
	f.embedTexts = append(f.embedTexts, text)
	f.mu.Unlock()
	return embedVec(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float64, error) {
	f.mu.Lock()
	call := f.batchCalls
	f.batchCalls++
	fail := f.failAllBatches || f.failBatch[call]
	f.mu.Unlock()
	if fail {
		return nil, errors.New("batch embedding failed")
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = embedVec(t)
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return 4 }

type fakeSearcher struct {
	mu    sync.Mutex
	docs  []domain.Document
	err   error
	calls int
}

func (f *fakeSearcher) SearchAndFetch(_ context.Context, _ string, _ int) ([]domain.Document, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.docs, f.err
}

type fakeGenerator struct {
	mu     sync.Mutex
	out    string
	err    error
	delay  time.Duration
	calls  int
	prompt string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.prompt = prompt
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.out, f.err
}

type fakeFinder struct {
	mu    sync.Mutex
	data  domain.MapsData
	calls int
}

func (f *fakeFinder) LookupAttractions(_ context.Context, _ string) domain.MapsData {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.data
}

type pipeline struct {
	store     *memory.Store
	embedder  *fakeEmbedder
	searcher  *fakeSearcher
	generator *fakeGenerator
	finder    *fakeFinder
	planner   *service.Planner
}

const fakeGuide = `{"tripOverview":{"destination":"Pokhara","days":1},"dailyItinerary":[]}`

func filler(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "lakeside"
	}
	return strings.Join(parts, " ")
}

func newPipeline(docs []domain.Document) *pipeline {
	logger := log.New(io.Discard, "", 0)
	p := &pipeline{
		store:     memory.NewStore(),
		embedder:  &fakeEmbedder{},
		searcher:  &fakeSearcher{docs: docs},
		generator: &fakeGenerator{out: fakeGuide},
		finder:    &fakeFinder{},
	}
	guides := service.NewGuideCache(p.store, p.embedder, "guides", "Nepal", logger)
	chunks := service.NewChunkStore(service.ChunkStoreConfig{
		Store:            p.store,
		Embedder:         p.embedder,
		Searcher:         p.searcher,
		Chunker:          textproc.NewWordChunker(50, 10, 10),
		IndexName:        "chunks",
		Qualifier:        "Nepal",
		NumResults:       7,
		MinDocumentWords: 30,
		Logger:           logger,
	})
	p.planner = service.NewPlanner(service.PlannerConfig{
		Guides:      guides,
		Chunks:      chunks,
		Attractions: p.finder,
		Generator:   p.generator,
		Logger:      logger,
	})
	return p
}

func TestPlanGuideMissThenHit(t *testing.T) {
	ctx := context.Background()
	p := newPipeline([]domain.Document{
		{URL: "https://example.com/pokhara", Title: "Pokhara", Text: filler(60)},
	})

	first, err := p.planner.PlanGuide(ctx, "Pokhara")
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, fakeGuide, first.Result)
	require.NotEmpty(t, first.Sources)
	assert.Equal(t, "https://example.com/pokhara", first.Sources[0].URL)
	assert.Equal(t, 1, p.searcher.calls)
	assert.GreaterOrEqual(t, p.embedder.batchCalls, 1)
	assert.Equal(t, 1, p.generator.calls)
	assert.Equal(t, 1, p.finder.calls)

	// The generated guide was written to the cache.
	guides, err := p.store.EnsureIndex(ctx, "guides", 4)
	require.NoError(t, err)
	assert.Equal(t, 1, guides.(*memory.Index).Len())

	// A second identical request is served from the cache: no search,
	// embedding batch, or generation runs.
	second, err := p.planner.PlanGuide(ctx, "Pokhara")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Result, second.Result)
	assert.NotEmpty(t, second.CachedAt)
	assert.Equal(t, 1, p.searcher.calls)
	assert.Equal(t, 1, p.generator.calls)
}

func TestPlanGuideEmptyPlace(t *testing.T) {
	p := newPipeline(nil)
	_, err := p.planner.PlanGuide(context.Background(), "  ")
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "Place parameter is required", validation.Msg)
	assert.Zero(t, p.searcher.calls)
}

func TestPlanGuideMissingCredentials(t *testing.T) {
	p := newPipeline(nil)
	missing := []string{"EXA_API_KEY", "PINECONE_API_KEY"}
	planner := service.NewPlanner(service.PlannerConfig{
		Attractions: p.finder,
		Generator:   p.generator,
		MissingKeys: func() []string { return missing },
		Logger:      log.New(io.Discard, "", 0),
	})

	_, err := planner.PlanGuide(context.Background(), "Pokhara")
	var config *domain.ConfigError
	require.ErrorAs(t, err, &config)
	assert.Equal(t, missing, config.MissingKeys)
	// The guard fires before any pipeline call.
	assert.Zero(t, p.searcher.calls)
	assert.Zero(t, p.embedder.embedCalls)
	assert.Zero(t, p.generator.calls)
}

func TestPlanGuideNoSearchResults(t *testing.T) {
	p := newPipeline(nil)
	_, err := p.planner.PlanGuide(context.Background(), "Pokhara")
	require.Error(t, err)
	assert.True(t, domain.NotFound(err))
	assert.Contains(t, err.Error(), "Pokhara, Nepal")
	assert.Zero(t, p.generator.calls)
}

func TestPlanGuideNoUsableContent(t *testing.T) {
	p := newPipeline([]domain.Document{
		{URL: "https://example.com/a", Title: "Empty", Text: ""},
		{URL: "https://example.com/b", Title: "Thin", Text: filler(10)},
	})
	_, err := p.planner.PlanGuide(context.Background(), "Pokhara")
	require.ErrorIs(t, err, domain.ErrNoContent)
	assert.True(t, domain.NotFound(err))
	assert.Zero(t, p.embedder.batchCalls)
}

func TestChunkStoreShortCircuit(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(nil)

	// Pre-seed the chunk index: an earlier ingestion already ran.
	ix, err := p.store.EnsureIndex(ctx, "chunks", 4)
	require.NoError(t, err)
	require.NoError(t, ix.Upsert(ctx, []vectorstore.Record{{
		ID:     "pokhara-1-0",
		Values: embedVec("seeded"),
		Metadata: map[string]string{
			"url": "https://example.com/cached", "title": "Cached",
			"chunkIndex": "0", "totalChunks": "1",
			"content": filler(40), "place": "pokhara",
		},
	}}))

	result, err := p.planner.PlanGuide(ctx, "Pokhara")
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "https://example.com/cached", result.Sources[0].URL)
	// Ingestion never ran.
	assert.Zero(t, p.searcher.calls)
	assert.Zero(t, p.embedder.batchCalls)
	assert.Equal(t, 1, p.generator.calls)
}

func TestEnrichmentFailOpen(t *testing.T) {
	p := newPipeline([]domain.Document{
		{URL: "https://example.com/pokhara", Title: "Pokhara", Text: filler(60)},
	})
	// The finder's empty result is its failure mode.
	result, err := p.planner.PlanGuide(context.Background(), "Pokhara")
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Contains(t, p.generator.prompt, "Coordinates: Not available")
	assert.Contains(t, p.generator.prompt, "Attractions: None found")
}

func TestEnrichmentInPrompt(t *testing.T) {
	p := newPipeline([]domain.Document{
		{URL: "https://example.com/pokhara", Title: "Pokhara", Text: filler(60)},
	})
	p.finder.data = domain.MapsData{
		Coordinates: "28.2096,83.9856",
		Attractions: []domain.Attraction{
			{Name: "Phewa Lake", Rating: "4.6", Vicinity: "Lakeside"},
		},
	}
	_, err := p.planner.PlanGuide(context.Background(), "Pokhara")
	require.NoError(t, err)
	assert.Contains(t, p.generator.prompt, "Coordinates: 28.2096,83.9856")
	assert.Contains(t, p.generator.prompt, "Phewa Lake: Rating 4.6, Location Lakeside, Image None")
	assert.Contains(t, p.generator.prompt, "SOURCE: https://example.com/pokhara")
}

func TestIngestToleratesFailedBatch(t *testing.T) {
	// 500 filler words with a 50/10 chunker yield 13 chunks: two batches.
	p := newPipeline([]domain.Document{
		{URL: "https://example.com/long", Title: "Long", Text: filler(500)},
	})
	p.embedder.failBatch = map[int]bool{0: true}

	result, err := p.planner.PlanGuide(context.Background(), "Pokhara")
	require.NoError(t, err)
	assert.Equal(t, 2, p.embedder.batchCalls)
	// Only the surviving batch's chunks made it through.
	assert.Len(t, result.Sources, 3)
}

func TestIngestFailsWhenAllBatchesFail(t *testing.T) {
	p := newPipeline([]domain.Document{
		{URL: "https://example.com/long", Title: "Long", Text: filler(60)},
	})
	p.embedder.failAllBatches = true
	_, err := p.planner.PlanGuide(context.Background(), "Pokhara")
	require.ErrorIs(t, err, domain.ErrEmbeddingFailed)
	assert.True(t, domain.NotFound(err))
}

func TestConcurrentMissesShareOneRun(t *testing.T) {
	p := newPipeline([]domain.Document{
		{URL: "https://example.com/pokhara", Title: "Pokhara", Text: filler(60)},
	})
	p.generator.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	results := make([]*service.PlanResult, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = p.planner.PlanGuide(context.Background(), "Pokhara")
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 1, p.generator.calls)
	assert.Equal(t, results[0].Result, results[1].Result)
}

// blockingGenerator holds generation open until released, failing early if
// its context is cancelled while it waits.
type blockingGenerator struct {
	enterOnce sync.Once
	entered   chan struct{}
	release   chan struct{}
	out       string
}

func (g *blockingGenerator) Generate(ctx context.Context, _ string) (string, error) {
	g.enterOnce.Do(func() { close(g.entered) })
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-g.release:
		return g.out, nil
	}
}

func TestMissRunSurvivesCallerDisconnect(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	store := memory.NewStore()
	embedder := &fakeEmbedder{}
	searcher := &fakeSearcher{docs: []domain.Document{
		{URL: "https://example.com/pokhara", Title: "Pokhara", Text: filler(60)},
	}}
	gen := &blockingGenerator{entered: make(chan struct{}), release: make(chan struct{}), out: fakeGuide}
	guides := service.NewGuideCache(store, embedder, "guides", "Nepal", logger)
	chunks := service.NewChunkStore(service.ChunkStoreConfig{
		Store:     store,
		Embedder:  embedder,
		Searcher:  searcher,
		Chunker:   textproc.NewWordChunker(50, 10, 10),
		IndexName: "chunks",
		Qualifier: "Nepal",
		Logger:    logger,
	})
	planner := service.NewPlanner(service.PlannerConfig{
		Guides:      guides,
		Chunks:      chunks,
		Attractions: &fakeFinder{},
		Generator:   gen,
		Logger:      logger,
	})

	type outcome struct {
		result *service.PlanResult
		err    error
	}
	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan outcome, 1)
	go func() {
		r, err := planner.PlanGuide(ctx, "Pokhara")
		first <- outcome{r, err}
	}()
	<-gen.entered

	// The initiating request disconnects mid-run while another request
	// for the same place is waiting on the shared run.
	cancel()
	second := make(chan outcome, 1)
	go func() {
		r, err := planner.PlanGuide(context.Background(), "Pokhara")
		second <- outcome{r, err}
	}()
	time.Sleep(20 * time.Millisecond)
	close(gen.release)

	for _, ch := range []chan outcome{first, second} {
		o := <-ch
		require.NoError(t, o.err)
		assert.Equal(t, fakeGuide, o.result.Result)
	}
}

func TestChunkLookupUsesRetrievalQuery(t *testing.T) {
	p := newPipeline([]domain.Document{
		{URL: "https://example.com/pokhara", Title: "Pokhara", Text: filler(60)},
	})
	_, err := p.planner.PlanGuide(context.Background(), "Pokhara")
	require.NoError(t, err)

	// The chunk-index lookup embeds a query one term longer than the web
	// search query; ingestion ranks against the search query itself.
	assert.Contains(t, p.embedder.embedTexts, "Pokhara Nepal tourism travel guide information")
	assert.Contains(t, p.embedder.embedTexts, "Pokhara Nepal tourism travel guide")
}

func TestPlaceKeyCaseFolds(t *testing.T) {
	ctx := context.Background()
	p := newPipeline([]domain.Document{
		{URL: "https://example.com/pokhara", Title: "Pokhara", Text: filler(60)},
	})
	_, err := p.planner.PlanGuide(ctx, "Pokhara")
	require.NoError(t, err)

	result, err := p.planner.PlanGuide(ctx, "  POKHARA ")
	require.NoError(t, err)
	assert.True(t, result.FromCache)
	assert.Equal(t, 1, p.searcher.calls)
}

func TestIngestPersistsChunks(t *testing.T) {
	ctx := context.Background()
	p := newPipeline([]domain.Document{
		{URL: "https://example.com/pokhara", Title: "Pokhara", Text: filler(60)},
	})
	first, err := p.planner.PlanGuide(ctx, "Pokhara")
	require.NoError(t, err)

	ix, err := p.store.EnsureIndex(ctx, "chunks", 4)
	require.NoError(t, err)
	assert.Equal(t, len(first.Sources), ix.(*memory.Index).Len())
}

func TestGuideCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	logger := log.New(io.Discard, "", 0)
	store := memory.NewStore()
	cache := service.NewGuideCache(store, &fakeEmbedder{}, "guides", "Nepal", logger)

	assert.Nil(t, cache.Get(ctx, "Pokhara"))

	sources := []domain.Source{{URL: "https://example.com", Title: "Pokhara", Similarity: 0.9}}
	require.NoError(t, cache.Put(ctx, "Pokhara", fakeGuide, sources))

	entry := cache.Get(ctx, "Pokhara")
	require.NotNil(t, entry)
	assert.Equal(t, "pokhara", entry.Place)
	assert.Equal(t, fakeGuide, entry.Guide)
	assert.Equal(t, sources, entry.Sources)
	_, err := time.Parse(time.RFC3339, entry.CreatedAt)
	assert.NoError(t, err)

	// Other places still miss.
	assert.Nil(t, cache.Get(ctx, "Mustang"))
}

func TestGuideCachePutOverwrites(t *testing.T) {
	ctx := context.Background()
	logger := log.New(io.Discard, "", 0)
	store := memory.NewStore()
	cache := service.NewGuideCache(store, &fakeEmbedder{}, "guides", "Nepal", logger)

	require.NoError(t, cache.Put(ctx, "Pokhara", "guide v1", nil))
	require.NoError(t, cache.Put(ctx, "Pokhara", "guide v2", nil))

	ix, err := store.EnsureIndex(ctx, "guides", 4)
	require.NoError(t, err)
	assert.Equal(t, 1, ix.(*memory.Index).Len())
	assert.Equal(t, "guide v2", cache.Get(ctx, "Pokhara").Guide)
}

func TestPromptFormatsChunks(t *testing.T) {
	p := newPipeline([]domain.Document{
		{URL: "https://example.com/pokhara", Title: "Pokhara Guide", Text: filler(60)},
	})
	_, err := p.planner.PlanGuide(context.Background(), "Pokhara")
	require.NoError(t, err)
	prompt := p.generator.prompt
	assert.Contains(t, prompt, "TITLE: Pokhara Guide")
	assert.Contains(t, prompt, "RELEVANCE: ")
	assert.Contains(t, prompt, `"destination": "Pokhara"`)
	assert.Contains(t, prompt, "Return ONLY the JSON object")
}
