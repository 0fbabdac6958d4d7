// Package gemini is a REST client for the generative-language API,
// covering the embedding and completion endpoints used by the pipeline.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ftbhabuk/yatra/internal/domain"
)

var (
	_ domain.Embedder  = (*Client)(nil)
	_ domain.Generator = (*Client)(nil)
)

// Default configuration values.
const (
	DefaultBaseURL         = "https://generativelanguage.googleapis.com/v1beta"
	DefaultEmbeddingModel  = "embedding-001"
	DefaultGenerationModel = "gemini-2.0-flash-lite"
	DefaultTemperature     = 0.5
	DefaultMaxOutputTokens = 4096
	DefaultTimeout         = 60 * time.Second
)

// Config configures the Gemini client.
type Config struct {
	BaseURL         string
	APIKey          string
	EmbeddingModel  string
	GenerationModel string
	Temperature     float64
	MaxOutputTokens int
	Timeout         time.Duration
}

// Client talks to the Gemini embedding and generation endpoints.
type Client struct {
	baseURL         string
	apiKey          string
	embeddingModel  string
	generationModel string
	temperature     float64
	maxOutputTokens int
	client          *http.Client

	mu        sync.Mutex
	dimension int
}

// NewClient creates a Gemini client. A missing API key is not rejected
// here; the request handler guards credentials before any call is made.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.GenerationModel == "" {
		cfg.GenerationModel = DefaultGenerationModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = DefaultMaxOutputTokens
	}
	t := cfg.Timeout
	if t == 0 {
		t = DefaultTimeout
	}
	return &Client{
		baseURL:         cfg.BaseURL,
		apiKey:          cfg.APIKey,
		embeddingModel:  cfg.EmbeddingModel,
		generationModel: cfg.GenerationModel,
		temperature:     cfg.Temperature,
		maxOutputTokens: cfg.MaxOutputTokens,
		client:          &http.Client{Timeout: t},
	}
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type embedContentRequest struct {
	Model   string  `json:"model,omitempty"`
	Content content `json:"content"`
}

type embedContentResponse struct {
	Embedding struct {
		Values []float64 `json:"values"`
	} `json:"embedding"`
}

type batchEmbedRequest struct {
	Requests []embedContentRequest `json:"requests"`
}

type batchEmbedResponse struct {
	Embeddings []struct {
		Values []float64 `json:"values"`
	} `json:"embeddings"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	body := embedContentRequest{Content: content{Parts: []part{{Text: text}}}}
	var out embedContentResponse
	url := fmt.Sprintf("%s/models/%s:embedContent", c.baseURL, c.embeddingModel)
	if err := c.postJSON(ctx, url, body, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding.Values) == 0 {
		return nil, errors.New("gemini: no embedding returned")
	}
	c.setDimension(len(out.Embedding.Values))
	return out.Embedding.Values, nil
}

// EmbedBatch embeds several texts in one request. The returned slice is
// index-aligned with texts; entries the model failed to embed are nil.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	reqs := make([]embedContentRequest, len(texts))
	for i, t := range texts {
		reqs[i] = embedContentRequest{
			Model:   "models/" + c.embeddingModel,
			Content: content{Role: "user", Parts: []part{{Text: t}}},
		}
	}
	var out batchEmbedResponse
	url := fmt.Sprintf("%s/models/%s:batchEmbedContents", c.baseURL, c.embeddingModel)
	if err := c.postJSON(ctx, url, batchEmbedRequest{Requests: reqs}, &out); err != nil {
		return nil, err
	}
	vectors := make([][]float64, len(texts))
	for i, e := range out.Embeddings {
		if i >= len(vectors) {
			break
		}
		if len(e.Values) > 0 {
			vectors[i] = e.Values
			c.setDimension(len(e.Values))
		}
	}
	return vectors, nil
}

// Dimension returns the vector dimensionality observed on the first
// successful embed, or zero if nothing has been embedded yet.
func (c *Client) Dimension() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dimension
}

// Generate produces completion text for the prompt using the configured
// generation parameters. Empty model output is an error.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     c.temperature,
			MaxOutputTokens: c.maxOutputTokens,
		},
	}
	var out generateResponse
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.generationModel)
	if err := c.postJSON(ctx, url, body, &out); err != nil {
		return "", err
	}
	if out.Error != nil {
		return "", fmt.Errorf("gemini: %s", out.Error.Message)
	}
	var text string
	if len(out.Candidates) > 0 {
		for _, p := range out.Candidates[0].Content.Parts {
			text += p.Text
		}
	}
	if text == "" {
		return "", domain.ErrNoGuideGenerated
	}
	return text, nil
}

func (c *Client) setDimension(d int) {
	c.mu.Lock()
	if c.dimension == 0 {
		c.dimension = d
	}
	c.mu.Unlock()
}

func (c *Client) postJSON(ctx context.Context, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("gemini: POST %s failed: %s: %s", url, resp.Status, bytes.TrimSpace(payload))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
