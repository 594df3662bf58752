package main

import (
	"context"
	"log"
	"net/http"

	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	geminiModel "github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"google.golang.org/genai"

	"studybase/auth"
	"studybase/config"
	"studybase/rag/answer"
	"studybase/rag/embed"
	"studybase/rag/index"
	"studybase/rag/ingest"
	"studybase/rag/store"
	"studybase/server"
)

func init() {
	// Load .env file if exists
	_ = godotenv.Load()
}

func main() {
	ctx := context.Background()
	cfg := config.Load()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: cfg.RedisPoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis unreachable at %s: %v", cfg.RedisAddr, err)
	}

	engine := embed.NewEngine(func(ctx context.Context) (embedding.Embedder, error) {
		return openaiEmbed.NewEmbedder(ctx, &openaiEmbed.EmbeddingConfig{
			APIKey:  cfg.EmbeddingAPIKey,
			BaseURL: cfg.EmbeddingBaseURL,
			Model:   cfg.EmbeddingModel,
		})
	}, cfg.EmbeddingDim)

	chatModel, err := newGeminiModel(ctx, cfg)
	if err != nil {
		log.Fatalf("chat model: %v", err)
	}

	idx, err := index.NewRedis(ctx, client, index.RedisConfig{
		IndexName: cfg.VectorIndexName,
		KeyPrefix: cfg.VectorKeyPrefix,
		VectorDim: cfg.EmbeddingDim,
	})
	if err != nil {
		log.Fatalf("vector index: %v", err)
	}

	verifier, err := auth.NewStaticVerifier(cfg.AuthTokens)
	if err != nil {
		log.Fatalf("auth tokens: %v", err)
	}

	st := store.NewRedisStore(client)
	ingestor := ingest.New(st, idx, engine, ingest.Config{
		MaxFileSize:         cfg.MaxFileSize,
		DefaultChunkSize:    cfg.ChunkSize,
		DefaultChunkOverlap: cfg.ChunkOverlap,
	})
	answerer := answer.New(engine, idx, chatModel, cfg.SearchTopK)

	srv := server.New(cfg, ingestor, answerer, st, idx, engine, verifier)

	log.Printf("listening on %s", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, srv.Routes()); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func newGeminiModel(ctx context.Context, cfg config.Config) (answer.ChatModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.GeminiAPIKey,
	})
	if err != nil {
		return nil, err
	}
	return geminiModel.NewChatModel(ctx, &geminiModel.Config{
		Client: client,
		Model:  cfg.GeminiModel,
	})
}
