package index

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studybase/rag"
)

const (
	defaultEFConstruction = 200
	defaultM              = 16

	// Field names in the Redis hash backing each entry.
	fieldContent    = "content"
	fieldVector     = "vector"
	fieldSubject    = "subject"
	fieldTopicPath  = "topic_path"
	fieldDocumentID = "document_id"
	fieldScore      = "score"
)

// RedisConfig holds configuration for the Redis-backed index.
type RedisConfig struct {
	IndexName      string
	KeyPrefix      string
	VectorDim      int
	EFConstruction int
	M              int
}

// Redis implements Index on top of RediSearch: entries live in hashes under a
// common key prefix and an HNSW cosine index serves KNN queries.
type Redis struct {
	client       *redis.Client
	cfg          RedisConfig
	mu           sync.Mutex
	indexCreated bool
}

var _ Index = (*Redis)(nil)

// NewRedis creates a Redis-backed index and ensures the vector index exists.
func NewRedis(ctx context.Context, client *redis.Client, cfg RedisConfig) (*Redis, error) {
	if cfg.IndexName == "" {
		cfg.IndexName = "studybase-corpus"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "entry:"
	}
	if cfg.VectorDim <= 0 {
		return nil, fmt.Errorf("vector dimension is required")
	}
	if cfg.EFConstruction <= 0 {
		cfg.EFConstruction = defaultEFConstruction
	}
	if cfg.M <= 0 {
		cfg.M = defaultM
	}

	idx := &Redis{client: client, cfg: cfg}
	if err := idx.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to create vector index: %w", err)
	}
	return idx, nil
}

// ensureIndex creates the HNSW vector index if it doesn't exist.
func (r *Redis) ensureIndex(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.client.Do(ctx, "FT.INFO", r.cfg.IndexName).Result(); err == nil {
		r.indexCreated = true
		return nil
	}

	_, err := r.client.Do(ctx, "FT.CREATE", r.cfg.IndexName,
		"ON", "HASH",
		"PREFIX", "1", r.cfg.KeyPrefix,
		"SCHEMA",
		fieldVector, "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(r.cfg.VectorDim),
		"DISTANCE_METRIC", "COSINE",
		"EF_CONSTRUCTION", strconv.Itoa(r.cfg.EFConstruction),
		"M", strconv.Itoa(r.cfg.M),
		fieldContent, "TEXT",
		fieldSubject, "TAG",
		fieldDocumentID, "TAG",
		fieldTopicPath, "TEXT",
	).Result()
	if err != nil {
		return err
	}

	r.indexCreated = true
	return nil
}

// Add implements Index.
func (r *Redis) Add(ctx context.Context, entries []rag.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, e := range entries {
		if len(e.Vector) != r.cfg.VectorDim {
			return fmt.Errorf("entry vector dimension mismatch: expected %d, got %d", r.cfg.VectorDim, len(e.Vector))
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}

		topicPath, _ := json.Marshal(e.TopicPath)
		pipe.HSet(ctx, r.cfg.KeyPrefix+e.ID,
			fieldContent, e.Content,
			fieldVector, rawVector(e.Vector),
			fieldSubject, escapeTag(e.Subject),
			fieldDocumentID, escapeTag(e.DocumentID),
			fieldTopicPath, string(topicPath),
		)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return rag.Storagef("index add", err)
	}
	return nil
}

// Search implements Index.
func (r *Redis) Search(ctx context.Context, vector []float32, k int) ([]rag.SearchResult, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	if len(vector) != r.cfg.VectorDim {
		return nil, fmt.Errorf("query vector dimension mismatch: expected %d, got %d", r.cfg.VectorDim, len(vector))
	}

	query := fmt.Sprintf("*=>[KNN %d @%s $query_vector AS %s]", k, fieldVector, fieldScore)
	result, err := r.client.Do(ctx, "FT.SEARCH", r.cfg.IndexName, query,
		"PARAMS", "2", "query_vector", rawVector(vector),
		"RETURN", "5", fieldContent, fieldSubject, fieldDocumentID, fieldTopicPath, fieldScore,
		"SORTBY", fieldScore,
		"LIMIT", "0", strconv.Itoa(k),
		"DIALECT", "2",
	).Result()
	if err != nil {
		return nil, rag.Storagef("index search", err)
	}

	return r.parseSearchResults(result)
}

// parseSearchResults turns the FT.SEARCH reply (count followed by id/field
// pairs) into ranked results. RediSearch reports cosine distance; similarity
// is 1 - distance.
func (r *Redis) parseSearchResults(result interface{}) ([]rag.SearchResult, error) {
	values, ok := result.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected search result format")
	}

	var results []rag.SearchResult
	for i := 1; i+1 < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			continue
		}
		fields, ok := values[i+1].([]interface{})
		if !ok {
			continue
		}

		entry := rag.IndexEntry{ID: strings.TrimPrefix(key, r.cfg.KeyPrefix)}
		score := 0.0
		for j := 0; j+1 < len(fields); j += 2 {
			name, ok := fields[j].(string)
			if !ok {
				continue
			}
			value, _ := fields[j+1].(string)
			switch name {
			case fieldContent:
				entry.Content = value
			case fieldSubject:
				entry.Subject = unescapeTag(value)
			case fieldDocumentID:
				entry.DocumentID = unescapeTag(value)
			case fieldTopicPath:
				if value != "" {
					_ = json.Unmarshal([]byte(value), &entry.TopicPath)
				}
			case fieldScore:
				if dist, err := strconv.ParseFloat(value, 64); err == nil {
					score = 1 - dist
				}
			}
		}
		results = append(results, rag.SearchResult{Entry: entry, Score: score})
	}

	return results, nil
}

// DeleteByDocument implements Index.
func (r *Redis) DeleteByDocument(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("document ID cannot be empty")
	}

	result, err := r.client.Do(ctx, "FT.SEARCH", r.cfg.IndexName,
		fmt.Sprintf("@%s:{%s}", fieldDocumentID, escapeTag(documentID)),
		"NOCONTENT",
		"LIMIT", "0", "10000",
		"DIALECT", "2",
	).Result()
	if err != nil {
		return rag.Storagef("index delete", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) < 2 {
		return nil
	}

	var keys []string
	for i := 1; i < len(values); i++ {
		if key, ok := values[i].(string); ok {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return rag.Storagef("index delete", err)
	}
	return nil
}

// Count implements Index.
func (r *Redis) Count(ctx context.Context) (int64, error) {
	info, err := r.client.Do(ctx, "FT.INFO", r.cfg.IndexName).Result()
	if err != nil {
		return 0, rag.Storagef("index info", err)
	}

	values, ok := info.([]interface{})
	if !ok {
		return 0, fmt.Errorf("unexpected index info format")
	}
	for i := 0; i+1 < len(values); i += 2 {
		if key, ok := values[i].(string); ok && key == "num_docs" {
			switch v := values[i+1].(type) {
			case int64:
				return v, nil
			case string:
				n, _ := strconv.ParseInt(v, 10, 64)
				return n, nil
			}
		}
	}
	return 0, nil
}

// Ping implements Index.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// rawVector encodes a vector as the little-endian FLOAT32 blob RediSearch
// expects for vector fields.
func rawVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// escapeTag escapes separator characters in TAG field values.
func escapeTag(s string) string {
	replacer := strings.NewReplacer(",", "\\,", " ", "\\ ")
	return replacer.Replace(s)
}

func unescapeTag(s string) string {
	replacer := strings.NewReplacer("\\,", ",", "\\ ", " ")
	return replacer.Replace(s)
}
