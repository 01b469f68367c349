package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/embedding"

	"crm-rag-api/pkg/logger"
	"crm-rag-api/pkg/metrics"
)

// Cache 查询向量缓存（由 Redis 实现）
type Cache interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (any, error)) ([]byte, bool, error)
}

// Gateway 包装底层 Embedder：挂载 Eino callbacks，并缓存单条文本（查询）的向量。
// 批量写入的向量不缓存。
type Gateway struct {
	inner embedding.Embedder
	cache Cache
	model string
	ttl   time.Duration
}

var _ embedding.Embedder = (*Gateway)(nil)

// NewGateway cache 为 nil 或 ttl<=0 时不缓存
func NewGateway(inner embedding.Embedder, cache Cache, model string, ttl time.Duration) *Gateway {
	return &Gateway{inner: inner, cache: cache, model: model, ttl: ttl}
}

func (g *Gateway) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      "crm_embedder",
		Type:      "OpenAI",
		Component: components.ComponentOfEmbedding,
	})

	if len(texts) != 1 || g.cache == nil || g.ttl <= 0 {
		return g.inner.EmbedStrings(ctx, texts, opts...)
	}

	raw, hit, err := g.cache.GetOrLoadSafe(ctx, g.cacheKey(texts[0]), g.ttl, func() (any, error) {
		vecs, err := g.inner.EmbedStrings(ctx, texts, opts...)
		if err != nil {
			return nil, &providerError{err: err}
		}
		if len(vecs) != 1 {
			return nil, &providerError{err: fmt.Errorf("embedding count mismatch: want 1, got %d", len(vecs))}
		}
		return vecs[0], nil
	})
	if err != nil {
		var pe *providerError
		if errors.As(err, &pe) {
			return nil, pe.err
		}
		// 缓存层故障：降级为直接调用
		metrics.EmbeddingCacheTotal.WithLabelValues("error").Inc()
		logger.Warn(ctx, "embedding cache unavailable, calling provider directly", "error", err.Error())
		return g.inner.EmbedStrings(ctx, texts, opts...)
	}

	if hit {
		metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
	} else {
		metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()
	}

	var vec []float64
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, fmt.Errorf("decode cached embedding: %w", err)
	}
	return [][]float64{vec}, nil
}

func (g *Gateway) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + g.model + ":" + hex.EncodeToString(sum[:])
}

// providerError 区分 loader 内的上游错误与缓存层错误
type providerError struct{ err error }

func (e *providerError) Error() string { return e.err.Error() }

func (e *providerError) Unwrap() error { return e.err }
