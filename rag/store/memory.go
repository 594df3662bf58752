package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"studybase/rag"
)

// MemoryStore is an in-process Store used by tests and redis-less dev runs.
// Records pass through the same codec as the Redis store so the serialized
// form stays covered.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string]map[string]string   // id -> encoded document fields
	chunks map[string][]map[string]string // id -> encoded chunks, index order
	owners map[string]map[string]struct{} // userID -> set of doc ids
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:   make(map[string]map[string]string),
		chunks: make(map[string][]map[string]string),
		owners: make(map[string]map[string]struct{}),
	}
}

func stringify(fields map[string]interface{}) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			out[k] = val
		case []byte:
			out[k] = string(val)
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, doc rag.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[doc.ID] = stringify(encodeDocument(doc))
	if s.owners[doc.UserID] == nil {
		s.owners[doc.UserID] = make(map[string]struct{})
	}
	s.owners[doc.UserID][doc.ID] = struct{}{}
	return nil
}

// UpdateStatus implements Store.
func (s *MemoryStore) UpdateStatus(_ context.Context, id string, update StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, ok := s.docs[id]
	if !ok {
		return rag.ErrNotFound
	}
	fields[docFieldStatus] = string(update.Status)
	fields[docFieldUpdatedAt] = nowRFC3339()
	if update.ChunkCount != nil {
		fields[docFieldChunkCount] = strconv.Itoa(*update.ChunkCount)
	}
	if update.ErrorMessage != "" {
		fields[docFieldError] = update.ErrorMessage
	}
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (rag.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields, ok := s.docs[id]
	if !ok {
		return rag.Document{}, rag.ErrNotFound
	}
	return decodeDocument(fields)
}

// ListByUser implements Store.
func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]rag.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]rag.Document, 0, len(s.owners[userID]))
	for id := range s.owners[userID] {
		fields, ok := s.docs[id]
		if !ok {
			continue
		}
		doc, err := decodeDocument(fields)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

// SaveChunks implements Store.
func (s *MemoryStore) SaveChunks(_ context.Context, documentID string, chunks []rag.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoded := make([]map[string]string, 0, len(chunks))
	for _, chunk := range chunks {
		encoded = append(encoded, stringify(encodeChunk(chunk)))
	}
	s.chunks[documentID] = encoded
	return nil
}

// Chunks implements Store.
func (s *MemoryStore) Chunks(_ context.Context, documentID string) ([]rag.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	encoded := s.chunks[documentID]
	chunks := make([]rag.Chunk, 0, len(encoded))
	for _, fields := range encoded {
		chunk, err := decodeChunk(fields)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return rag.ErrNotFound
	}
	delete(s.docs, id)
	delete(s.chunks, id)
	if owned := s.owners[userID]; owned != nil {
		delete(owned, id)
	}
	return nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}
