// Package vectorstore defines the vector database surface the pipeline
// depends on: namespaced indexes with metadata-filtered similarity queries.
package vectorstore

import "context"

// UpsertBatchSize is the maximum number of records per upsert call.
// Callers partition larger sets into batches of this size.
const UpsertBatchSize = 100

// Record is one vector row with its metadata payload.
type Record struct {
	ID       string
	Values   []float64
	Metadata map[string]string
}

// Match is a query hit: similarity score by the index metric plus the
// stored metadata when requested.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// Index is an open handle to one named vector index.
type Index interface {
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, vector []float64, filter map[string]string, topK int, includeMetadata bool) ([]Match, error)
}

// Store manages named cosine-metric vector indexes.
// EnsureIndex is idempotent: it creates the index if absent, waits for it
// to become ready, and returns a handle either way.
type Store interface {
	EnsureIndex(ctx context.Context, name string, dimension int) (Index, error)
}
