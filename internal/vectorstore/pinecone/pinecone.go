// Package pinecone is a minimal REST client to Pinecone. Indexes are
// created serverless with cosine distance; creation waits for readiness
// by polling the describe endpoint.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ftbhabuk/yatra/internal/vectorstore"
)

var _ vectorstore.Store = (*Store)(nil)

// Config configures the Pinecone client.
type Config struct {
	BaseURL      string
	APIKey       string
	Cloud        string
	Region       string
	Timeout      time.Duration
	PollInterval time.Duration
	MaxPolls     int
}

// Store is the control-plane client; index handles carry their own data-plane host.
type Store struct {
	baseURL      string
	apiKey       string
	cloud        string
	region       string
	pollInterval time.Duration
	maxPolls     int
	client       *http.Client
}

// NewStore creates a Pinecone client. A missing API key is not rejected
// here; the request handler guards credentials before any call is made.
func NewStore(cfg Config) *Store {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.pinecone.io"
	}
	if cfg.Cloud == "" {
		cfg.Cloud = "aws"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	interval := cfg.PollInterval
	if interval == 0 {
		interval = 2 * time.Second
	}
	maxPolls := cfg.MaxPolls
	if maxPolls == 0 {
		maxPolls = 30
	}
	return &Store{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		cloud:        cfg.Cloud,
		region:       cfg.Region,
		pollInterval: interval,
		maxPolls:     maxPolls,
		client:       &http.Client{Timeout: timeout},
	}
}

type describeIndexResponse struct {
	Name   string `json:"name"`
	Host   string `json:"host"`
	Status struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

type createIndexRequest struct {
	Name      string    `json:"name"`
	Dimension int       `json:"dimension"`
	Metric    string    `json:"metric"`
	Spec      indexSpec `json:"spec"`
}

type indexSpec struct {
	Serverless serverlessSpec `json:"serverless"`
}

type serverlessSpec struct {
	Cloud  string `json:"cloud"`
	Region string `json:"region"`
}

// EnsureIndex returns a handle to the named index, creating it (cosine,
// serverless) and waiting for readiness when it does not exist yet.
func (s *Store) EnsureIndex(ctx context.Context, name string, dimension int) (vectorstore.Index, error) {
	if dimension <= 0 {
		return nil, errors.New("pinecone: invalid dimension")
	}
	desc, err := s.describeIndex(ctx, name)
	if err == nil {
		if !desc.Status.Ready {
			desc, err = s.awaitReady(ctx, name)
			if err != nil {
				return nil, err
			}
		}
		return s.indexHandle(desc), nil
	}
	if !errors.Is(err, errIndexNotFound) {
		return nil, err
	}

	body := createIndexRequest{
		Name:      name,
		Dimension: dimension,
		Metric:    "cosine",
		Spec:      indexSpec{Serverless: serverlessSpec{Cloud: s.cloud, Region: s.region}},
	}
	if err := s.doJSON(ctx, http.MethodPost, s.baseURL+"/indexes", body, nil); err != nil {
		return nil, err
	}
	desc, err = s.awaitReady(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.indexHandle(desc), nil
}

var errIndexNotFound = errors.New("pinecone: index not found")

func (s *Store) describeIndex(ctx context.Context, name string) (*describeIndexResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/indexes/"+name, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Api-Key", s.apiKey)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, errIndexNotFound
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("pinecone: describe index %s failed: %s", name, resp.Status)
	}
	var desc describeIndexResponse
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

func (s *Store) awaitReady(ctx context.Context, name string) (*describeIndexResponse, error) {
	for i := 0; i < s.maxPolls; i++ {
		desc, err := s.describeIndex(ctx, name)
		if err != nil && !errors.Is(err, errIndexNotFound) {
			return nil, err
		}
		if err == nil && desc.Status.Ready {
			return desc, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
	return nil, fmt.Errorf("pinecone: index %s not ready after %d polls", name, s.maxPolls)
}

func (s *Store) indexHandle(desc *describeIndexResponse) *Index {
	host := desc.Host
	if host != "" && !strings.HasPrefix(host, "http") {
		host = "https://" + host
	}
	return &Index{store: s, host: host}
}

// Index is a handle to one Pinecone index's data plane.
type Index struct {
	store *Store
	host  string
}

var _ vectorstore.Index = (*Index)(nil)

type upsertRequest struct {
	Vectors []vectorPayload `json:"vectors"`
}

type vectorPayload struct {
	ID       string            `json:"id"`
	Values   []float64         `json:"values"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type queryRequest struct {
	Vector          []float64                 `json:"vector"`
	TopK            int                       `json:"topK"`
	Filter          map[string]map[string]any `json:"filter,omitempty"`
	IncludeMetadata bool                      `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string            `json:"id"`
		Score    float64           `json:"score"`
		Metadata map[string]string `json:"metadata"`
	} `json:"matches"`
}

// Upsert writes records to the index. Callers batch at
// vectorstore.UpsertBatchSize records per call.
func (ix *Index) Upsert(ctx context.Context, records []vectorstore.Record) error {
	vectors := make([]vectorPayload, len(records))
	for i, r := range records {
		vectors[i] = vectorPayload{ID: r.ID, Values: r.Values, Metadata: r.Metadata}
	}
	return ix.store.doJSON(ctx, http.MethodPost, ix.host+"/vectors/upsert", upsertRequest{Vectors: vectors}, nil)
}

// Query returns up to topK nearest records. filter is an equality predicate
// on metadata fields, translated to Pinecone's $eq form.
func (ix *Index) Query(ctx context.Context, vector []float64, filter map[string]string, topK int, includeMetadata bool) ([]vectorstore.Match, error) {
	body := queryRequest{Vector: vector, TopK: topK, IncludeMetadata: includeMetadata}
	if len(filter) > 0 {
		body.Filter = make(map[string]map[string]any, len(filter))
		for k, v := range filter {
			body.Filter[k] = map[string]any{"$eq": v}
		}
	}
	var out queryResponse
	if err := ix.store.doJSON(ctx, http.MethodPost, ix.host+"/query", body, &out); err != nil {
		return nil, err
	}
	matches := make([]vectorstore.Match, 0, len(out.Matches))
	for _, m := range out.Matches {
		matches = append(matches, vectorstore.Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return matches, nil
}

func (s *Store) doJSON(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", s.apiKey)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("pinecone: %s %s failed: %s: %s", method, url, resp.Status, bytes.TrimSpace(payload))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
