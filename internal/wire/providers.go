package wire

import (
	"context"
	"fmt"

	einoembedding "github.com/cloudwego/eino/components/embedding"

	"crm-rag-api/internal/application/rag"
	"crm-rag-api/internal/application/retrieval"
	"crm-rag-api/internal/config"
	infraembedding "crm-rag-api/internal/infrastructure/embedding"
	"crm-rag-api/internal/infrastructure/persistence/memory"
	"crm-rag-api/internal/infrastructure/persistence/milvus"
	"crm-rag-api/internal/infrastructure/persistence/qdrant"
	"crm-rag-api/internal/infrastructure/persistence/redis"
	"crm-rag-api/internal/infrastructure/source"
	"crm-rag-api/internal/interfaces/http/handler"
	"crm-rag-api/internal/interfaces/http/middleware"
	"crm-rag-api/internal/interfaces/http/router"
	"crm-rag-api/pkg/logger"
)

// App API 服务依赖容器
type App struct {
	Router  *router.Router
	Indexer *retrieval.Indexer
	Manager *retrieval.IndexManager
}

// Ingestion 写入链路依赖容器
type Ingestion struct {
	Indexer *retrieval.Indexer
	Manager *retrieval.IndexManager
}

// ProvideRedisClientOptional 未启用或不可达时返回 nil，缓存与分布式限流随之降级
func ProvideRedisClientOptional(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Warn(ctx, "redis not available, cache and distributed rate limit disabled", "error", err.Error())
		return nil, func() {}, nil
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

func ProvideEmbeddingCache(client *redis.Client) infraembedding.Cache {
	if client == nil {
		return nil
	}
	return redis.NewCache(client)
}

func ProvideRateLimiter(client *redis.Client) middleware.RateLimiter {
	if client == nil {
		return nil
	}
	return redis.NewRateLimiter(client)
}

// ProvideVectorIndex 按配置创建向量索引；Milvus/Qdrant 不可达时返回 nil，向量能力禁用
func ProvideVectorIndex(ctx context.Context, cfg *config.Config) (retrieval.VectorIndex, func(), error) {
	vc := cfg.Vector
	switch vc.Provider {
	case "memory":
		return memory.NewStore(vc.Collection, vc.Dimension), func() {}, nil

	case "qdrant":
		store, err := qdrant.New(&vc.Qdrant, vc.Collection, vc.Dimension)
		if err != nil {
			logger.Warn(ctx, "qdrant not available, vector features disabled", "error", err.Error())
			return nil, func() {}, nil
		}
		return store, func() { _ = store.Close() }, nil

	case "milvus", "":
		client, err := milvus.NewClient(ctx, &vc.Milvus)
		if err != nil {
			logger.Warn(ctx, "milvus not available, vector features disabled", "error", err.Error())
			return nil, func() {}, nil
		}
		repo := milvus.NewRepository(client, vc.Collection, vc.Dimension)
		return milvus.NewIndex(repo, vc.Collection), func() { _ = client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported vector provider: %s", vc.Provider)
	}
}

// ProvideEmbedderOptional 包装 Embedding Gateway；配置缺失时返回 nil
func ProvideEmbedderOptional(ctx context.Context, cfg *config.Config, cache infraembedding.Cache) (einoembedding.Embedder, error) {
	inner, err := infraembedding.NewEinoEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		logger.Warn(ctx, "embedding not available, vector features disabled", "error", err.Error())
		return nil, nil
	}
	return infraembedding.NewGateway(inner, cache, cfg.Embedding.Model, cfg.Embedding.CacheTTL), nil
}

func ProvideSourceParser(cfg *config.Config) *source.Parser {
	return source.NewParser(cfg.RAG.MaxSourceBytes)
}

func ProvideRetrievalIndexer(cfg *config.Config, embedder einoembedding.Embedder, index retrieval.VectorIndex, parser retrieval.SourceParser, guard *retrieval.ResetGuard) *retrieval.Indexer {
	return retrieval.NewIndexer(embedder, index, parser, guard, cfg.Embedding.BatchSize, cfg.Embedding.Concurrency)
}

func ProvideRetrievalEngine(cfg *config.Config, embedder einoembedding.Embedder, index retrieval.VectorIndex, guard *retrieval.ResetGuard) *retrieval.Engine {
	return retrieval.NewEngine(embedder, index, guard, cfg.RAG.MaxTopK)
}

func ProvideOrchestrator(cfg *config.Config, searcher rag.Searcher, chat rag.ChatModelFactory) *rag.Orchestrator {
	return rag.NewOrchestrator(searcher, chat,
		rag.WithSystemPrompt(cfg.RAG.SystemPromptOverride),
		rag.WithProvider(cfg.LLM.DefaultProvider),
	)
}

func ProvideHealthHandler(cfg *config.Config, index retrieval.VectorIndex, client *redis.Client) *handler.HealthHandler {
	return handler.NewHealthHandler(index, client, cfg.App.Version)
}
