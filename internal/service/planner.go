// Package service sequences the place-guide pipeline: cache check,
// retrieval, enrichment, generation, and cache write.
package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ftbhabuk/yatra/internal/domain"
)

// PlanResult is the outcome of one pipeline run.
type PlanResult struct {
	Result      string
	Sources     []domain.Source
	FromCache   bool
	CachedAt    string
	TotalChunks int
}

// Planner drives the end-to-end pipeline. Concurrent requests for the same
// uncached place share a single run through the miss path.
type Planner struct {
	guides      *GuideCache
	chunks      *ChunkStore
	attractions domain.AttractionFinder
	generator   domain.Generator
	missingKeys func() []string
	logger      *log.Logger
	group       singleflight.Group
}

// PlannerConfig configures a Planner.
type PlannerConfig struct {
	Guides      *GuideCache
	Chunks      *ChunkStore
	Attractions domain.AttractionFinder
	Generator   domain.Generator

	// MissingKeys reports unset required credentials; a non-empty result
	// fails the request before any network call.
	MissingKeys func() []string

	Logger *log.Logger
}

// NewPlanner creates a planner.
func NewPlanner(cfg PlannerConfig) *Planner {
	if cfg.MissingKeys == nil {
		cfg.MissingKeys = func() []string { return nil }
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Planner{
		guides:      cfg.Guides,
		chunks:      cfg.Chunks,
		attractions: cfg.Attractions,
		generator:   cfg.Generator,
		missingKeys: cfg.MissingKeys,
		logger:      cfg.Logger,
	}
}

// PlanGuide produces a travel guide for place, reusing a cached guide when
// one exists.
func (p *Planner) PlanGuide(ctx context.Context, place string) (*PlanResult, error) {
	place = strings.TrimSpace(place)
	if place == "" {
		return nil, &domain.ValidationError{Msg: "Place parameter is required"}
	}
	if missing := p.missingKeys(); len(missing) > 0 {
		return nil, &domain.ConfigError{MissingKeys: missing}
	}

	start := time.Now()
	if entry := p.guides.Get(ctx, place); entry != nil {
		p.logger.Printf("[timing] cache hit for %q: %dms", place, time.Since(start).Milliseconds())
		return &PlanResult{
			Result:    entry.Guide,
			Sources:   entry.Sources,
			FromCache: true,
			CachedAt:  entry.CreatedAt,
		}, nil
	}

	// The expensive path is de-duplicated per folded place: concurrent
	// misses for the same place share one pipeline run. The run detaches
	// from the initiating request so one caller disconnecting does not
	// fail everyone waiting on the same place.
	v, err, _ := p.group.Do(domain.FoldPlace(place), func() (any, error) {
		return p.generate(context.WithoutCancel(ctx), place)
	})
	if err != nil {
		return nil, err
	}
	return v.(*PlanResult), nil
}

func (p *Planner) generate(ctx context.Context, place string) (*PlanResult, error) {
	step := time.Now()
	chunks, err := p.chunks.GetOrIngest(ctx, place)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w for %q", domain.ErrNoContent, place)
	}
	p.logger.Printf("[timing] retrieve chunks for %q: %dms", place, time.Since(step).Milliseconds())

	step = time.Now()
	maps := p.attractions.LookupAttractions(ctx, place)
	p.logger.Printf("[timing] attraction lookup for %q: %dms", place, time.Since(step).Milliseconds())

	step = time.Now()
	guide, err := p.generator.Generate(ctx, buildPrompt(place, chunks, maps))
	if err != nil {
		return nil, err
	}
	p.logger.Printf("[timing] generation for %q: %dms", place, time.Since(step).Milliseconds())

	sources := make([]domain.Source, len(chunks))
	for i, c := range chunks {
		sources[i] = domain.Source{URL: c.URL, Title: c.Title, Similarity: c.Similarity}
	}
	if err := p.guides.Put(ctx, place, guide, sources); err != nil {
		p.logger.Printf("guide cache: caching guide for %q failed: %v", place, err)
	}

	return &PlanResult{
		Result:      guide,
		Sources:     sources,
		TotalChunks: len(chunks),
	}, nil
}

// buildPrompt assembles the single generation prompt: the itinerary JSON
// shape, the maps enrichment block, and every retrieved chunk with its
// source, title, and similarity score.
func buildPrompt(place string, chunks []domain.EmbeddedChunk, maps domain.MapsData) string {
	var content strings.Builder
	for i, c := range chunks {
		if i > 0 {
			content.WriteString("\n\n")
		}
		fmt.Fprintf(&content, "SOURCE: %s\nTITLE: %s\nRELEVANCE: %.4f\nCONTENT:\n%s\n---", c.URL, c.Title, c.Similarity, c.Content)
	}

	coordinates := maps.Coordinates
	if coordinates == "" {
		coordinates = "Not available"
	}
	attractions := make([]string, 0, len(maps.Attractions))
	for _, a := range maps.Attractions {
		photo := a.Photo
		if photo == "" {
			photo = "None"
		}
		attractions = append(attractions, fmt.Sprintf("%s: Rating %s, Location %s, Image %s", a.Name, a.Rating, a.Vicinity, photo))
	}
	attractionList := strings.Join(attractions, " | ")
	if attractionList == "" {
		attractionList = "None found"
	}

	return fmt.Sprintf(`
Provide a travel plan in valid JSON format:
{
  "tripOverview": {
    "destination": "%s",
    "days": 1
  },
  "dailyItinerary": [
    {
      "day": number,
      "date": string,
      "activities": [
        {
          "time": string,
          "activity": string,
          "location": string,
          "duration": string,
          "cost": number,
          "notes": string,
          "description": string
        }
      ]
    }
  ]
}

Guidelines:
1. Build a detailed daily itinerary blending things to do from the content and the maps attractions.
2. In each activity description, describe the place, the activity in detail, and its cost.
3. Return ONLY the JSON object, no extra text.

GOOGLE MAPS DATA:
- Coordinates: %s
- Attractions: %s

Use this content:
%s
`, place, coordinates, attractionList, content.String())
}
