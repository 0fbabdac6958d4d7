// Package memory is an in-memory vector store using brute-force cosine
// similarity. It backs local runs and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ftbhabuk/yatra/internal/vectorstore"
)

var _ vectorstore.Store = (*Store)(nil)

// Store holds named indexes.
type Store struct {
	mu      sync.Mutex
	indexes map[string]*Index
}

func NewStore() *Store {
	return &Store{indexes: make(map[string]*Index)}
}

// EnsureIndex creates the index on first use and validates dimension on
// subsequent calls.
func (s *Store) EnsureIndex(_ context.Context, name string, dimension int) (vectorstore.Index, error) {
	if dimension <= 0 {
		return nil, errors.New("memory: invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ix, ok := s.indexes[name]; ok {
		if ix.dimension != dimension {
			return nil, fmt.Errorf("memory: index %s has dimension %d, want %d", name, ix.dimension, dimension)
		}
		return ix, nil
	}
	ix := &Index{dimension: dimension, records: make(map[string]vectorstore.Record)}
	s.indexes[name] = ix
	return ix, nil
}

// Index is one named in-memory index. Upserts replace records by id.
type Index struct {
	mu        sync.RWMutex
	dimension int
	records   map[string]vectorstore.Record
}

var _ vectorstore.Index = (*Index)(nil)

func (ix *Index) Upsert(_ context.Context, records []vectorstore.Record) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, r := range records {
		if len(r.Values) != ix.dimension {
			return errors.New("memory: vector dimension mismatch")
		}
		ix.records[r.ID] = r
	}
	return nil
}

func (ix *Index) Query(_ context.Context, vector []float64, filter map[string]string, topK int, includeMetadata bool) ([]vectorstore.Match, error) {
	if topK <= 0 {
		topK = 5
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	matches := make([]vectorstore.Match, 0, len(ix.records))
	for id, r := range ix.records {
		if !metadataMatches(r.Metadata, filter) {
			continue
		}
		m := vectorstore.Match{ID: id, Score: cosine(vector, r.Values)}
		if includeMetadata {
			m.Metadata = r.Metadata
		}
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

// Len reports the number of stored records, for tests.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.records)
}

func metadataMatches(metadata, filter map[string]string) bool {
	for k, want := range filter {
		if metadata[k] != want {
			return false
		}
	}
	return true
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
