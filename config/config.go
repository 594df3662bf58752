// Package config loads service configuration from environment variables with
// working defaults for local development.
package config

import (
	"os"
	"strconv"
)

type Config struct {
	ListenAddr string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int

	VectorIndexName string
	VectorKeyPrefix string

	MaxFileSize  int64
	ChunkSize    int
	ChunkOverlap int

	EmbeddingAPIKey  string
	EmbeddingBaseURL string
	EmbeddingModel   string
	EmbeddingDim     int

	GeminiAPIKey string
	GeminiModel  string

	SearchTopK int

	// AuthTokens holds "token:user_id[:role]" entries, comma separated.
	AuthTokens string

	CORSOrigin string
}

func Load() Config {
	return Config{
		ListenAddr:       getenv("STUDYBASE_LISTEN_ADDR", ":8000"),
		RedisAddr:        getenv("STUDYBASE_REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getenv("STUDYBASE_REDIS_PASSWORD", ""),
		RedisDB:          getenvInt("STUDYBASE_REDIS_DB", 0),
		RedisPoolSize:    getenvInt("STUDYBASE_REDIS_POOL_SIZE", 10),
		VectorIndexName:  getenv("STUDYBASE_VECTOR_INDEX", "idx:study_materials"),
		VectorKeyPrefix:  getenv("STUDYBASE_VECTOR_KEY_PREFIX", "study:chunk:"),
		MaxFileSize:      getenvInt64("STUDYBASE_MAX_FILE_SIZE", 50<<20),
		ChunkSize:        getenvInt("STUDYBASE_CHUNK_SIZE", 500),
		ChunkOverlap:     getenvInt("STUDYBASE_CHUNK_OVERLAP", 50),
		EmbeddingAPIKey:  getenv("STUDYBASE_EMBEDDING_API_KEY", ""),
		EmbeddingBaseURL: getenv("STUDYBASE_EMBEDDING_BASE_URL", ""),
		EmbeddingModel:   getenv("STUDYBASE_EMBEDDING_MODEL", "Qwen/Qwen3-Embedding-0.6B"),
		EmbeddingDim:     getenvInt("STUDYBASE_EMBEDDING_DIM", 1024),
		GeminiAPIKey:     getenv("STUDYBASE_GEMINI_API_KEY", ""),
		GeminiModel:      getenv("STUDYBASE_GEMINI_MODEL", "gemini-2.0-flash"),
		SearchTopK:       getenvInt("STUDYBASE_SEARCH_TOP_K", 5),
		AuthTokens:       getenv("STUDYBASE_AUTH_TOKENS", "dev-token:dev-user:admin"),
		CORSOrigin:       getenv("STUDYBASE_CORS_ORIGIN", "*"),
	}
}

func getenv(k, fallback string) string {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(k string, fallback int) int {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvInt64(k string, fallback int64) int64 {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
