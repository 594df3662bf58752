// Package embed provides the embedding engine: a single shared model instance
// mapping text to fixed-dimension vectors for both corpus ingestion and query
// embedding.
package embed

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/embedding"

	"studybase/rag"
)

const defaultDimension = 1024

// Factory builds the underlying embedding model. It is invoked at most once
// per Engine.
type Factory func(ctx context.Context) (embedding.Embedder, error)

// Engine wraps an embedding model behind a lazy load. It is constructed at
// startup and injected into the ingestion and answering pipelines; after a
// successful load it is read-only and safe for concurrent use.
type Engine struct {
	factory Factory
	dim     int

	mu       sync.RWMutex
	embedder embedding.Embedder
}

// NewEngine creates an engine that loads its model via factory on first use.
// dim is the expected vector dimension for every embedding produced.
func NewEngine(factory Factory, dim int) *Engine {
	if dim <= 0 {
		dim = defaultDimension
	}
	return &Engine{factory: factory, dim: dim}
}

// load initializes the underlying model on first use. A failed load is not
// cached: the next call invokes the factory again, so a transient outage at
// startup does not wedge the engine for the process lifetime.
func (e *Engine) load(ctx context.Context) error {
	e.mu.RLock()
	loaded := e.embedder != nil
	e.mu.RUnlock()
	if loaded {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.embedder != nil {
		return nil
	}
	emb, err := e.factory(ctx)
	if err != nil {
		return &rag.ModelUnavailableError{Cause: err}
	}
	e.embedder = emb
	return nil
}

// Embed maps texts to vectors, index-aligned with the input. Empty input
// yields empty output without touching the model.
func (e *Engine) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := e.load(ctx); err != nil {
		return nil, err
	}

	vectors, err := e.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, &rag.ModelUnavailableError{Cause: err}
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: %d texts, %d vectors", len(texts), len(vectors))
	}

	result := make([][]float32, len(vectors))
	for i, vec := range vectors {
		if len(vec) != e.dim {
			return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", e.dim, len(vec))
		}
		result[i] = make([]float32, len(vec))
		for j, v := range vec {
			result[i][j] = float32(v)
		}
	}

	return result, nil
}

// Dimension returns the fixed vector dimension.
func (e *Engine) Dimension() int {
	return e.dim
}

// Ready forces a load attempt and reports whether the model is usable.
// The health probe calls this so initialization failures surface proactively
// instead of mid-request.
func (e *Engine) Ready(ctx context.Context) error {
	return e.load(ctx)
}

// Loaded reports whether the model has been initialized successfully, without
// triggering a load.
func (e *Engine) Loaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.embedder != nil
}
