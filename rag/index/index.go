// Package index provides similarity search over (vector, text, metadata)
// entries, ranked by cosine similarity.
package index

import (
	"context"

	"studybase/rag"
)

// DefaultTopK bounds search results when the caller does not say otherwise.
const DefaultTopK = 5

// Index is a similarity-searchable collection of entries. Insertion is
// append-only; entries are removed only by document identifier.
type Index interface {
	// Add appends entries to the index. Entries must carry vectors of the
	// index's fixed dimension.
	Add(ctx context.Context, entries []rag.IndexEntry) error

	// Search returns up to k entries ranked by cosine similarity to the query
	// vector, highest first. A query vector whose dimension does not match
	// the index is rejected, never mis-ranked.
	Search(ctx context.Context, vector []float32, k int) ([]rag.SearchResult, error)

	// DeleteByDocument removes every entry whose document identifier matches.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Count returns the number of entries in the index.
	Count(ctx context.Context) (int64, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
