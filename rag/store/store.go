// Package store persists document metadata and chunk content keyed the way
// the service reads them back: by document identifier and by owning user.
package store

import (
	"context"

	"studybase/rag"
)

// StatusUpdate is a field-level partial update of a document record. Only the
// status and update timestamp are always written; chunk count and error
// message are written when set.
type StatusUpdate struct {
	Status       rag.DocumentStatus
	ChunkCount   *int
	ErrorMessage string
}

// Store persists Document records and their chunks.
type Store interface {
	// Create writes a new document record and registers it under its owner.
	Create(ctx context.Context, doc rag.Document) error

	// UpdateStatus applies a partial update to an existing record.
	UpdateStatus(ctx context.Context, id string, update StatusUpdate) error

	// Get returns a document by identifier, or rag.ErrNotFound.
	Get(ctx context.Context, id string) (rag.Document, error)

	// ListByUser returns all documents owned by a user, most recent first.
	ListByUser(ctx context.Context, userID string) ([]rag.Document, error)

	// SaveChunks persists a document's chunks as one batch write.
	SaveChunks(ctx context.Context, documentID string, chunks []rag.Chunk) error

	// Chunks returns a document's chunks in index order. A document with no
	// persisted chunks yields an empty slice.
	Chunks(ctx context.Context, documentID string) ([]rag.Chunk, error)

	// Delete removes a document and all its chunks. Returns rag.ErrNotFound
	// when the identifier is unknown.
	Delete(ctx context.Context, id, userID string) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}
