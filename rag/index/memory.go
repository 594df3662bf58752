package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"studybase/rag"
)

// Memory is a brute-force cosine similarity index held in process memory.
// It serves tests and single-node runs without a Redis backend.
type Memory struct {
	mu      sync.RWMutex
	dim     int
	entries []rag.IndexEntry
}

var _ Index = (*Memory)(nil)

// NewMemory creates an empty in-memory index. The vector dimension is fixed
// by the first entry added.
func NewMemory() *Memory {
	return &Memory{}
}

// Add implements Index.
func (m *Memory) Add(_ context.Context, entries []rag.IndexEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		if len(e.Vector) == 0 {
			return fmt.Errorf("entry %q has no vector", e.ID)
		}
		if m.dim == 0 {
			m.dim = len(e.Vector)
		}
		if len(e.Vector) != m.dim {
			return fmt.Errorf("entry vector dimension mismatch: expected %d, got %d", m.dim, len(e.Vector))
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		m.entries = append(m.entries, e)
	}
	return nil
}

// Search implements Index.
func (m *Memory) Search(_ context.Context, vector []float32, k int) ([]rag.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if k <= 0 {
		k = DefaultTopK
	}
	if len(m.entries) == 0 {
		return []rag.SearchResult{}, nil
	}
	if len(vector) != m.dim {
		return nil, fmt.Errorf("query vector dimension mismatch: expected %d, got %d", m.dim, len(vector))
	}

	results := make([]rag.SearchResult, 0, len(m.entries))
	for _, e := range m.entries {
		results = append(results, rag.SearchResult{Entry: e, Score: cosine(vector, e.Vector)})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// DeleteByDocument implements Index.
func (m *Memory) DeleteByDocument(_ context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("document ID cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.DocumentID != documentID {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	return nil
}

// Count implements Index.
func (m *Memory) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.entries)), nil
}

// Ping implements Index.
func (m *Memory) Ping(_ context.Context) error {
	return nil
}

// cosine computes the cosine similarity of two equal-length vectors.
func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
