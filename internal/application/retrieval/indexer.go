package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"golang.org/x/sync/errgroup"

	"crm-rag-api/internal/domain/entity"
	"crm-rag-api/pkg/logger"
	"crm-rag-api/pkg/metrics"
)

const (
	defaultEmbeddingBatch       = 32
	defaultEmbeddingConcurrency = 4
)

// SourceParser 将原始数据源解析为 CRM 记录
type SourceParser interface {
	Parse(source string, t entity.RecordType) ([]entity.Record, error)
}

// IngestSource 一个待写入的数据源
type IngestSource struct {
	Source   string
	Type     entity.RecordType
	Metadata map[string]any
}

// IngestSummary 多数据源写入结果
type IngestSummary struct {
	Total  int
	ByType map[entity.RecordType]int
	// Failed 失败的数据源数量
	Failed int
}

type Indexer struct {
	embedder embedding.Embedder
	index    VectorIndex
	parser   SourceParser
	guard    *ResetGuard

	embeddingBatchSize  int
	embeddingConcurrent int
}

func NewIndexer(embedder embedding.Embedder, index VectorIndex, parser SourceParser, guard *ResetGuard, embeddingBatchSize, concurrency int) *Indexer {
	bs := embeddingBatchSize
	if bs <= 0 {
		bs = defaultEmbeddingBatch
	}
	cc := concurrency
	if cc <= 0 {
		cc = defaultEmbeddingConcurrency
	}
	return &Indexer{
		embedder:            embedder,
		index:               index,
		parser:              parser,
		guard:               guard,
		embeddingBatchSize:  bs,
		embeddingConcurrent: cc,
	}
}

func (i *Indexer) Enabled() bool {
	return i != nil && i.embedder != nil && i.index != nil
}

func (i *Indexer) ensureReady(ctx context.Context) error {
	if !i.Enabled() {
		return ErrVectorDisabled
	}
	ready, err := i.index.Ready(ctx)
	if err != nil {
		return Upstream(ServiceVectorDB, err)
	}
	if !ready {
		return ErrIndexNotReady
	}
	return nil
}

// IngestOne 写入单条记录，返回写入数量（0 或 1）
func (i *Indexer) IngestOne(ctx context.Context, rec entity.Record, t entity.RecordType, extra map[string]any) (int, error) {
	if rec == nil {
		return 0, nil
	}
	return i.IngestBatch(ctx, []entity.Record{rec}, t, extra)
}

// IngestBatch 先完成全部记录的向量化，再一次性写入。
// 任一记录向量化失败则整批不写入。
func (i *Indexer) IngestBatch(ctx context.Context, records []entity.Record, t entity.RecordType, extra map[string]any) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if err := i.ensureReady(ctx); err != nil {
		return 0, err
	}

	start := time.Now()
	epoch := i.guard.Epoch()

	digest := BatchDigest(records)
	docs := make([]*VectorDocument, 0, len(records))
	texts := make([]string, 0, len(records))
	seen := make(map[string]int, len(records))
	for ordinal, rec := range records {
		id, text, err := Normalize(rec, t, FallbackKey(digest, ordinal))
		if err != nil {
			return 0, err
		}
		// 元数据中的 id 为业务主键，文档 ID 带类型前缀
		key := strings.TrimPrefix(id, string(t)+"_")
		doc := &VectorDocument{
			ID:       id,
			Content:  text,
			Metadata: entity.MetadataFor(key, rec).WithExtra(extra),
		}
		// 同批重复主键：后者覆盖前者
		if idx, ok := seen[id]; ok {
			docs[idx] = doc
			texts[idx] = text
			continue
		}
		seen[id] = len(docs)
		docs = append(docs, doc)
		texts = append(texts, text)
	}

	vectors, err := i.embedBatch(ctx, texts)
	if err != nil {
		metrics.IngestDocumentsTotal.WithLabelValues(string(t), "failed").Add(float64(len(docs)))
		return 0, err
	}
	for idx := range docs {
		docs[idx].Vector = vectors[idx]
	}

	err = i.guard.ReadAt(epoch, func() error {
		return i.index.Upsert(ctx, docs)
	})
	if err != nil {
		metrics.IngestDocumentsTotal.WithLabelValues(string(t), "failed").Add(float64(len(docs)))
		if errors.Is(err, ErrIndexReset) {
			return 0, err
		}
		return 0, Upstream(ServiceVectorDB, err)
	}

	metrics.IngestDocumentsTotal.WithLabelValues(string(t), "success").Add(float64(len(docs)))
	logger.Info(ctx, "ingest batch completed",
		"type", string(t),
		"count", len(docs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return len(docs), nil
}

// IngestSource 解析数据源并批量写入
func (i *Indexer) IngestSource(ctx context.Context, src IngestSource) (int, error) {
	if i == nil || i.parser == nil {
		return 0, ErrVectorDisabled
	}
	if strings.TrimSpace(src.Source) == "" {
		return 0, NewValidationError("source", "source is required")
	}
	records, err := i.parser.Parse(src.Source, src.Type)
	if err != nil {
		return 0, err
	}
	return i.IngestBatch(ctx, records, src.Type, src.Metadata)
}

// IngestMultiSource 依次写入多个数据源；单个数据源失败只记录日志并跳过，不中断其余数据源
func (i *Indexer) IngestMultiSource(ctx context.Context, sources []IngestSource) *IngestSummary {
	summary := &IngestSummary{ByType: make(map[entity.RecordType]int, len(entity.RecordTypes))}
	for _, t := range entity.RecordTypes {
		summary.ByType[t] = 0
	}

	for idx, src := range sources {
		n, err := i.IngestSource(ctx, src)
		if err != nil {
			summary.Failed++
			metrics.IngestSourcesTotal.WithLabelValues(string(src.Type), "failed").Inc()
			logger.Error(ctx, "ingest source failed", err,
				"source_index", idx,
				"type", string(src.Type),
			)
			continue
		}
		metrics.IngestSourcesTotal.WithLabelValues(string(src.Type), "success").Inc()
		summary.ByType[src.Type] += n
		summary.Total += n
	}

	logger.Info(ctx, "multi-source ingest completed",
		"sources", len(sources),
		"failed", summary.Failed,
		"total", summary.Total,
	)
	return summary
}

// embedBatch 按 batch 切分并发调用 embedder，结果按输入顺序返回
func (i *Indexer) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if i == nil || i.embedder == nil {
		return nil, ErrVectorDisabled
	}
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.embeddingConcurrent)
	for start := 0; start < len(texts); start += i.embeddingBatchSize {
		end := min(start+i.embeddingBatchSize, len(texts))
		g.Go(func() error {
			v64, err := i.embedder.EmbedStrings(gctx, texts[start:end])
			if err != nil {
				return Upstream(ServiceEmbedding, err)
			}
			if len(v64) != end-start {
				return Upstream(ServiceEmbedding, fmt.Errorf("embedding count mismatch: want %d, got %d", end-start, len(v64)))
			}
			for k, vec := range v64 {
				out[start+k] = toFloat32(vec)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func toFloat32(vec []float64) []float32 {
	out := make([]float32, 0, len(vec))
	for _, x := range vec {
		out = append(out, float32(x))
	}
	return out
}
