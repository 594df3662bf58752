package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"studybase/rag"
)

// RedisStore persists documents as Redis hashes: one hash per document under
// doc:{id}, one hash per chunk under doc:{id}:chunk:{i}, a chunk counter, and
// a per-user set for listing.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a document store backed by the given Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func docKey(id string) string          { return "doc:" + id }
func chunkKey(id string, i int) string { return fmt.Sprintf("doc:%s:chunk:%d", id, i) }
func chunkCountKey(id string) string   { return "doc:" + id + ":chunk_count" }
func userDocsKey(userID string) string { return "user:" + userID + ":documents" }

// Create implements Store.
func (s *RedisStore) Create(ctx context.Context, doc rag.Document) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, docKey(doc.ID), encodeDocument(doc))
	pipe.SAdd(ctx, userDocsKey(doc.UserID), doc.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return rag.Storagef("create document", err)
	}
	return nil
}

// UpdateStatus implements Store.
func (s *RedisStore) UpdateStatus(ctx context.Context, id string, update StatusUpdate) error {
	fields := map[string]interface{}{
		docFieldStatus:    string(update.Status),
		docFieldUpdatedAt: nowRFC3339(),
	}
	if update.ChunkCount != nil {
		fields[docFieldChunkCount] = strconv.Itoa(*update.ChunkCount)
	}
	if update.ErrorMessage != "" {
		fields[docFieldError] = update.ErrorMessage
	}

	if err := s.client.HSet(ctx, docKey(id), fields).Err(); err != nil {
		return rag.Storagef("update status", err)
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (rag.Document, error) {
	fields, err := s.client.HGetAll(ctx, docKey(id)).Result()
	if err != nil {
		return rag.Document{}, rag.Storagef("get document", err)
	}
	if len(fields) == 0 {
		return rag.Document{}, rag.ErrNotFound
	}
	return decodeDocument(fields)
}

// ListByUser implements Store.
func (s *RedisStore) ListByUser(ctx context.Context, userID string) ([]rag.Document, error) {
	ids, err := s.client.SMembers(ctx, userDocsKey(userID)).Result()
	if err != nil {
		return nil, rag.Storagef("list documents", err)
	}

	docs := make([]rag.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := s.Get(ctx, id)
		if err == rag.ErrNotFound {
			// Stale set member; skip.
			continue
		}
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

// SaveChunks implements Store. Chunks are written in one pipeline so a
// failure before this point leaves zero chunks for the document.
func (s *RedisStore) SaveChunks(ctx context.Context, documentID string, chunks []rag.Chunk) error {
	pipe := s.client.TxPipeline()
	for _, chunk := range chunks {
		pipe.HSet(ctx, chunkKey(documentID, chunk.Index), encodeChunk(chunk))
	}
	pipe.Set(ctx, chunkCountKey(documentID), len(chunks), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return rag.Storagef("save chunks", err)
	}
	return nil
}

// Chunks implements Store.
func (s *RedisStore) Chunks(ctx context.Context, documentID string) ([]rag.Chunk, error) {
	count, err := s.client.Get(ctx, chunkCountKey(documentID)).Int()
	if err == redis.Nil {
		return []rag.Chunk{}, nil
	}
	if err != nil {
		return nil, rag.Storagef("get chunk count", err)
	}

	chunks := make([]rag.Chunk, 0, count)
	for i := 0; i < count; i++ {
		fields, err := s.client.HGetAll(ctx, chunkKey(documentID, i)).Result()
		if err != nil {
			return nil, rag.Storagef("get chunk", err)
		}
		if len(fields) == 0 {
			continue
		}
		chunk, err := decodeChunk(fields)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// Delete implements Store. The document, its chunks, and its listing
// membership are removed in one pipeline.
func (s *RedisStore) Delete(ctx context.Context, id, userID string) error {
	exists, err := s.client.Exists(ctx, docKey(id)).Result()
	if err != nil {
		return rag.Storagef("delete document", err)
	}
	if exists == 0 {
		return rag.ErrNotFound
	}

	count, err := s.client.Get(ctx, chunkCountKey(id)).Int()
	if err != nil && err != redis.Nil {
		return rag.Storagef("delete document", err)
	}

	pipe := s.client.TxPipeline()
	for i := 0; i < count; i++ {
		pipe.Del(ctx, chunkKey(id, i))
	}
	pipe.Del(ctx, docKey(id), chunkCountKey(id))
	pipe.SRem(ctx, userDocsKey(userID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return rag.Storagef("delete document", err)
	}
	return nil
}

// Ping implements Store.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
