package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/ftbhabuk/yatra/internal/domain"
	"github.com/ftbhabuk/yatra/internal/vectorstore"
)

// GuideCache maps a place to a previously generated guide, backed by a
// vector index. Reads fail open: any internal error is a miss.
type GuideCache struct {
	store     vectorstore.Store
	embedder  domain.Embedder
	indexName string
	qualifier string
	logger    *log.Logger
	now       func() time.Time
}

// NewGuideCache creates a guide cache over the given store and embedder.
func NewGuideCache(store vectorstore.Store, embedder domain.Embedder, indexName, qualifier string, logger *log.Logger) *GuideCache {
	if logger == nil {
		logger = log.Default()
	}
	return &GuideCache{
		store:     store,
		embedder:  embedder,
		indexName: indexName,
		qualifier: qualifier,
		logger:    logger,
		now:       time.Now,
	}
}

// Get returns the cached guide for place, or nil on a miss. Internal
// failures are logged and treated identically to a genuine miss.
func (c *GuideCache) Get(ctx context.Context, place string) *domain.GuideEntry {
	query := searchQuery(place, c.qualifier)
	vec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		c.logger.Printf("guide cache: embedding query for %q failed: %v", place, err)
		return nil
	}
	ix, err := c.store.EnsureIndex(ctx, c.indexName, len(vec))
	if err != nil {
		c.logger.Printf("guide cache: ensuring index for %q failed: %v", place, err)
		return nil
	}
	matches, err := ix.Query(ctx, vec, map[string]string{"place": domain.FoldPlace(place)}, 1, true)
	if err != nil {
		c.logger.Printf("guide cache: query for %q failed: %v", place, err)
		return nil
	}
	if len(matches) == 0 {
		return nil
	}
	md := matches[0].Metadata
	entry := &domain.GuideEntry{
		Place:     md["place"],
		Guide:     md["guide"],
		CreatedAt: md["createdAt"],
	}
	if raw := md["sources"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &entry.Sources); err != nil {
			c.logger.Printf("guide cache: decoding sources for %q failed: %v", place, err)
		}
	}
	return entry
}

// Put stores a generated guide keyed by a slug of place. The guide's own
// text becomes its retrieval vector. The returned error is informational;
// callers log it and move on.
func (c *GuideCache) Put(ctx context.Context, place, guide string, sources []domain.Source) error {
	vec, err := c.embedder.Embed(ctx, guide)
	if err != nil {
		return err
	}
	ix, err := c.store.EnsureIndex(ctx, c.indexName, len(vec))
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(sources)
	if err != nil {
		return err
	}
	record := vectorstore.Record{
		ID:     "guide-" + domain.Slug(place),
		Values: vec,
		Metadata: map[string]string{
			"place":     domain.FoldPlace(place),
			"guide":     guide,
			"sources":   string(encoded),
			"createdAt": c.now().UTC().Format(time.RFC3339),
		},
	}
	return ix.Upsert(ctx, []vectorstore.Record{record})
}

// searchQuery is the synthetic retrieval query used for a place, both for
// web search and for cache lookups.
func searchQuery(place, qualifier string) string {
	if qualifier == "" {
		return place + " tourism travel guide"
	}
	return place + " " + qualifier + " tourism travel guide"
}
