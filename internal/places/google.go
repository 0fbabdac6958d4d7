// Package places wraps the Google Maps places endpoints. Attraction
// enrichment is strictly nice-to-have, so every failure degrades to an
// empty result instead of an error.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/ftbhabuk/yatra/internal/domain"
)

var _ domain.AttractionFinder = (*GoogleClient)(nil)

// Defaults for the nearby-attraction lookup.
const (
	DefaultBaseURL        = "https://maps.googleapis.com/maps/api"
	DefaultRadiusMeters   = 5000
	DefaultMaxAttractions = 5
	DefaultTimeout        = 15 * time.Second
)

// Config configures the Google Maps client.
type Config struct {
	BaseURL        string
	APIKey         string
	Qualifier      string
	RadiusMeters   int
	MaxAttractions int
	Timeout        time.Duration
	Logger         *log.Logger
}

// GoogleClient resolves a place name to coordinates and nearby attractions.
type GoogleClient struct {
	baseURL        string
	apiKey         string
	qualifier      string
	radiusMeters   int
	maxAttractions int
	client         *http.Client
	logger         *log.Logger
}

// NewGoogleClient creates a maps client. A missing API key is not an error
// here; lookups simply return empty results until one is configured.
func NewGoogleClient(cfg Config) *GoogleClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RadiusMeters == 0 {
		cfg.RadiusMeters = DefaultRadiusMeters
	}
	if cfg.MaxAttractions == 0 {
		cfg.MaxAttractions = DefaultMaxAttractions
	}
	t := cfg.Timeout
	if t == 0 {
		t = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &GoogleClient{
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		qualifier:      cfg.Qualifier,
		radiusMeters:   cfg.RadiusMeters,
		maxAttractions: cfg.MaxAttractions,
		client:         &http.Client{Timeout: t},
		logger:         logger,
	}
}

type textSearchResponse struct {
	Results []struct {
		PlaceID  string `json:"place_id"`
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

type nearbySearchResponse struct {
	Results []struct {
		Name     string   `json:"name"`
		Rating   *float64 `json:"rating"`
		Vicinity string   `json:"vicinity"`
		Photos   []struct {
			PhotoReference string `json:"photo_reference"`
		} `json:"photos"`
	} `json:"results"`
}

// LookupAttractions resolves the place to coordinates and fetches up to the
// configured number of nearby tourist attractions. It never fails: any
// error yields the empty, well-formed MapsData.
func (c *GoogleClient) LookupAttractions(ctx context.Context, place string) domain.MapsData {
	var data domain.MapsData
	if c.apiKey == "" {
		c.logger.Printf("places: skipping attraction lookup for %q: API key missing", place)
		return data
	}

	query := place
	if c.qualifier != "" {
		query += " " + c.qualifier
	}
	searchURL := fmt.Sprintf("%s/place/textsearch/json?query=%s&key=%s",
		c.baseURL, url.QueryEscape(query), url.QueryEscape(c.apiKey))
	var search textSearchResponse
	if err := c.getJSON(ctx, searchURL, &search); err != nil {
		c.logger.Printf("places: text search for %q failed: %v", place, err)
		return data
	}
	if len(search.Results) == 0 || search.Results[0].PlaceID == "" {
		c.logger.Printf("places: no place ID found for %q", place)
		return data
	}

	loc := search.Results[0].Geometry.Location
	data.Coordinates = fmt.Sprintf("%g,%g", loc.Lat, loc.Lng)

	nearbyURL := fmt.Sprintf("%s/place/nearbysearch/json?location=%g,%g&radius=%d&type=tourist_attraction&key=%s",
		c.baseURL, loc.Lat, loc.Lng, c.radiusMeters, url.QueryEscape(c.apiKey))
	var nearby nearbySearchResponse
	if err := c.getJSON(ctx, nearbyURL, &nearby); err != nil {
		c.logger.Printf("places: nearby search for %q failed: %v", place, err)
		return data
	}

	for i, r := range nearby.Results {
		if i >= c.maxAttractions {
			break
		}
		a := domain.Attraction{Name: r.Name, Rating: "N/A", Vicinity: r.Vicinity}
		if r.Rating != nil {
			a.Rating = fmt.Sprintf("%g", *r.Rating)
		}
		if len(r.Photos) > 0 && r.Photos[0].PhotoReference != "" {
			a.Photo = fmt.Sprintf("%s/place/photo?maxwidth=400&photoreference=%s&key=%s",
				c.baseURL, url.QueryEscape(r.Photos[0].PhotoReference), url.QueryEscape(c.apiKey))
		}
		data.Attractions = append(data.Attractions, a)
	}
	return data
}

func (c *GoogleClient) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("places: GET failed: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
