// Package search wraps the Exa search-and-contents endpoint.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ftbhabuk/yatra/internal/domain"
)

var _ domain.ContentSearcher = (*ExaClient)(nil)

// DefaultBaseURL is the Exa API endpoint.
const DefaultBaseURL = "https://api.exa.ai"

// DefaultTimeout bounds one search-and-fetch round trip.
const DefaultTimeout = 30 * time.Second

// Config configures the Exa client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// ExaClient issues neural web searches and fetches extracted page text.
type ExaClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewExaClient creates an Exa client. A missing API key is not rejected
// here; the request handler guards credentials before any call is made.
func NewExaClient(cfg Config) *ExaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	t := cfg.Timeout
	if t == 0 {
		t = DefaultTimeout
	}
	return &ExaClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: t},
	}
}

type searchRequest struct {
	Query         string         `json:"query"`
	Type          string         `json:"type"`
	NumResults    int            `json:"numResults"`
	UseAutoprompt bool           `json:"useAutoprompt"`
	Contents      searchContents `json:"contents"`
}

type searchContents struct {
	Text bool `json:"text"`
}

type searchResponse struct {
	Results []struct {
		URL   string `json:"url"`
		Title string `json:"title"`
		Text  string `json:"text"`
	} `json:"results"`
}

// SearchAndFetch returns up to numResults ranked documents with extracted
// text. It may return fewer than requested; documents with empty text are
// passed through for the caller to discard.
func (c *ExaClient) SearchAndFetch(ctx context.Context, query string, numResults int) ([]domain.Document, error) {
	body := searchRequest{
		Query:         query,
		Type:          "neural",
		NumResults:    numResults,
		UseAutoprompt: true,
		Contents:      searchContents{Text: true},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("exa: search failed: %s: %s", resp.Status, bytes.TrimSpace(payload))
	}
	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	docs := make([]domain.Document, 0, len(out.Results))
	for _, r := range out.Results {
		title := r.Title
		if title == "" {
			title = "Untitled"
		}
		docs = append(docs, domain.Document{URL: r.URL, Title: title, Text: r.Text})
	}
	return docs, nil
}
