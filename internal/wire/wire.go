//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"crm-rag-api/internal/application/rag"
	"crm-rag-api/internal/application/retrieval"
	"crm-rag-api/internal/config"
	"crm-rag-api/internal/infrastructure/llm"
	"crm-rag-api/internal/infrastructure/source"
	"crm-rag-api/internal/interfaces/http/handler"
	"crm-rag-api/internal/interfaces/http/router"
)

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(
		RedisSet,
		VectorSet,
		EmbeddingSet,
		RetrievalSet,
		RAGSet,
		RouterSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}

// InitializeIngestion 仅初始化写入链路（用于 bootstrap）
func InitializeIngestion(ctx context.Context, cfg *config.Config) (*Ingestion, func(), error) {
	wire.Build(
		RedisSet,
		VectorSet,
		EmbeddingSet,
		RetrievalSet,
		wire.Struct(new(Ingestion), "*"),
	)
	return nil, nil, nil
}

// RedisSet Redis 提供者集合（可选）
var RedisSet = wire.NewSet(
	ProvideRedisClientOptional,
	ProvideEmbeddingCache,
	ProvideRateLimiter,
)

// VectorSet 向量索引提供者集合，按 vector.provider 选择后端
var VectorSet = wire.NewSet(
	ProvideVectorIndex,
)

// EmbeddingSet 可选 Embedder（不可用时禁用向量检索/索引）
var EmbeddingSet = wire.NewSet(
	ProvideEmbedderOptional,
)

// RetrievalSet 写入、检索与集合管理
var RetrievalSet = wire.NewSet(
	retrieval.NewResetGuard,
	ProvideSourceParser,
	wire.Bind(new(retrieval.SourceParser), new(*source.Parser)),
	ProvideRetrievalIndexer,
	ProvideRetrievalEngine,
	retrieval.NewIndexManager,
)

// RAGSet 问答编排
var RAGSet = wire.NewSet(
	llm.NewEinoFactory,
	wire.Bind(new(rag.ChatModelFactory), new(*llm.EinoFactory)),
	wire.Bind(new(rag.Searcher), new(*retrieval.Engine)),
	ProvideOrchestrator,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewQueryHandler,
	handler.NewIngestHandler,
	handler.NewAdminHandler,
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)
