package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"crm-rag-api/internal/domain/entity"
	"crm-rag-api/pkg/logger"
)

const (
	DefaultTopK    = 5
	defaultMaxTopK = 50
)

// SearchInput 检索输入
type SearchInput struct {
	Query string
	TopK  int

	// Types 为空表示不过滤
	Types []entity.RecordType
}

// Engine 检索器：一次向量化、一次召回，按相关度降序返回，不做阈值过滤
type Engine struct {
	embedder embedding.Embedder
	index    VectorIndex
	guard    *ResetGuard

	maxTopK int
}

func NewEngine(embedder embedding.Embedder, index VectorIndex, guard *ResetGuard, maxTopK int) *Engine {
	mk := maxTopK
	if mk <= 0 {
		mk = defaultMaxTopK
	}
	return &Engine{
		embedder: embedder,
		index:    index,
		guard:    guard,
		maxTopK:  mk,
	}
}

func (e *Engine) Enabled() bool {
	return e != nil && e.embedder != nil && e.index != nil
}

func (e *Engine) ensureReady(ctx context.Context) error {
	if !e.Enabled() {
		return ErrVectorDisabled
	}
	ready, err := e.index.Ready(ctx)
	if err != nil {
		return Upstream(ServiceVectorDB, err)
	}
	if !ready {
		return ErrIndexNotReady
	}
	return nil
}

// Search 返回按 Score 非递增排序的结果，Score 相同保持向量库原始顺序
func (e *Engine) Search(ctx context.Context, in SearchInput) ([]entity.SearchResult, error) {
	in.Query = strings.TrimSpace(in.Query)
	if in.Query == "" {
		return nil, NewValidationError("query", "query is required")
	}
	if in.TopK <= 0 {
		in.TopK = DefaultTopK
	}
	if in.TopK > e.maxTopK {
		logger.Warn(ctx, "top_k capped", "requested_top_k", in.TopK, "max_top_k", e.maxTopK)
		in.TopK = e.maxTopK
	}

	// 未初始化时在向量化之前失败
	if err := e.ensureReady(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	vec, err := e.embedQuery(ctx, in.Query)
	if err != nil {
		return nil, err
	}

	var hits []*VectorHit
	err = e.guard.Read(func() error {
		var qerr error
		hits, qerr = e.index.Query(ctx, &VectorQueryParams{
			Vector: vec,
			TopK:   in.TopK,
			Types:  in.Types,
		})
		return qerr
	})
	if err != nil {
		return nil, Upstream(ServiceVectorDB, err)
	}

	results := make([]entity.SearchResult, 0, len(hits))
	for _, h := range hits {
		if h == nil {
			continue
		}
		d := h.Distance
		results = append(results, entity.SearchResult{
			Document: entity.Document{
				ID:       strings.TrimSpace(h.ID),
				Content:  h.Content,
				Metadata: h.Metadata,
			},
			Score:    ScoreFromDistance(d),
			Distance: &d,
		})
	}
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})

	logger.Debug(ctx, "vector search completed",
		"top_k", in.TopK,
		"results", len(results),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return results, nil
}

// ScoreFromDistance 距离转相关度：1/(1+d)，d<=0 时为 1
func ScoreFromDistance(d float64) float64 {
	if d <= 0 {
		return 1
	}
	return 1 / (1 + d)
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	v64, err := e.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, Upstream(ServiceEmbedding, err)
	}
	if len(v64) == 0 || len(v64[0]) == 0 {
		return nil, Upstream(ServiceEmbedding, fmt.Errorf("empty embedding result"))
	}
	return toFloat32(v64[0]), nil
}
