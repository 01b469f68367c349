package milvus

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Repository 单集合的向量读写
type Repository struct {
	client     *Client
	collection string
	dim        int
}

// NewRepository 创建向量仓储
func NewRepository(client *Client, collection string, dim int) *Repository {
	return &Repository{client: client, collection: collection, dim: dim}
}

func (r *Repository) configured() error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	return nil
}

// HasCollection 检查集合是否存在
func (r *Repository) HasCollection(ctx context.Context) (bool, error) {
	if err := r.configured(); err != nil {
		return false, err
	}
	ctx, span := tracer.Start(ctx, "milvus.HasCollection",
		trace.WithAttributes(attribute.String("collection", r.collection)))
	defer span.End()

	ok, err := r.client.milvus.HasCollection(ctx, r.collection)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to check collection: %w", err)
	}
	return ok, nil
}

// EnsureCollection 确保集合与索引可用（不存在则创建），并加载到内存
func (r *Repository) EnsureCollection(ctx context.Context) error {
	if err := r.configured(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "milvus.EnsureCollection",
		trace.WithAttributes(attribute.String("collection", r.collection)))
	defer span.End()

	exists, err := r.HasCollection(ctx)
	if err != nil {
		return err
	}
	if !exists {
		if err := r.client.milvus.CreateCollection(ctx, DocumentsSchema(r.collection, r.dim), entity.DefaultShardNumber); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create collection: %w", err)
		}
		if err := r.createIndex(ctx); err != nil {
			span.RecordError(err)
			return err
		}
	}

	if err := r.client.milvus.LoadCollection(ctx, r.collection, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to load collection: %w", err)
	}
	return nil
}

// createIndex 创建 HNSW/COSINE 索引
func (r *Repository) createIndex(ctx context.Context) error {
	idx, err := entity.NewIndexHNSW(
		entity.COSINE,
		r.client.config.HNSWM,
		r.client.config.HNSWEfConstruction,
	)
	if err != nil {
		return fmt.Errorf("failed to build index params: %w", err)
	}
	if err := r.client.milvus.CreateIndex(ctx, r.collection, fieldVector, idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// DropCollection 删除集合（不存在时忽略）
func (r *Repository) DropCollection(ctx context.Context) error {
	if err := r.configured(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "milvus.DropCollection",
		trace.WithAttributes(attribute.String("collection", r.collection)))
	defer span.End()

	exists, err := r.HasCollection(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if err := r.client.milvus.DropCollection(ctx, r.collection); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// Upsert 按主键覆盖写入
func (r *Repository) Upsert(ctx context.Context, rows []*Row) error {
	if err := r.configured(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "milvus.Upsert",
		trace.WithAttributes(
			attribute.String("collection", r.collection),
			attribute.Int("count", len(rows)),
		))
	defer span.End()

	ids := make([]string, len(rows))
	vectors := make([][]float32, len(rows))
	docTypes := make([]string, len(rows))
	texts := make([]string, len(rows))
	for i, row := range rows {
		if len(row.Vector) != r.dim {
			return fmt.Errorf("vector dimension mismatch for %s: want %d, got %d", row.ID, r.dim, len(row.Vector))
		}
		if len(row.ID) > maxIDLength {
			return fmt.Errorf("document id %q exceeds %d bytes", row.ID, maxIDLength)
		}
		if len(row.TextContent) > maxTextLength {
			return fmt.Errorf("document %s text exceeds %d bytes", row.ID, maxTextLength)
		}
		ids[i] = row.ID
		vectors[i] = row.Vector
		docTypes[i] = row.DocType
		texts[i] = row.TextContent
	}

	_, err := r.client.milvus.Upsert(ctx, r.collection, "",
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnFloatVector(fieldVector, r.dim, vectors),
		entity.NewColumnVarChar(fieldDocType, docTypes),
		entity.NewColumnVarChar(fieldText, texts),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert documents: %w", err)
	}
	return nil
}

// Search 最近邻检索，Score 为余弦相似度
func (r *Repository) Search(ctx context.Context, vector []float32, topK int, docTypes []string) ([]*Hit, error) {
	if err := r.configured(); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "milvus.Search",
		trace.WithAttributes(
			attribute.String("collection", r.collection),
			attribute.Int("top_k", topK),
		))
	defer span.End()

	ef := r.client.config.SearchEf
	if ef < topK {
		ef = max(topK, 128)
	}
	sp, err := entity.NewIndexHNSWSearchParam(ef)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := r.client.milvus.Search(ctx,
		r.collection,
		nil,
		docTypeFilter(docTypes),
		[]string{fieldID, fieldDocType, fieldText},
		[]entity.Vector{entity.FloatVector(vector)},
		fieldVector,
		entity.COSINE,
		topK,
		sp,
		client.WithSearchQueryConsistencyLevel(entity.ClStrong),
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var hits []*Hit
	for _, result := range results {
		idCol, _ := result.Fields.GetColumn(fieldID).(*entity.ColumnVarChar)
		typeCol, _ := result.Fields.GetColumn(fieldDocType).(*entity.ColumnVarChar)
		textCol, _ := result.Fields.GetColumn(fieldText).(*entity.ColumnVarChar)
		for i := 0; i < result.ResultCount; i++ {
			h := &Hit{Score: result.Scores[i]}
			if idCol != nil {
				h.ID = idCol.Data()[i]
			}
			if typeCol != nil {
				h.DocType = typeCol.Data()[i]
			}
			if textCol != nil {
				h.TextContent = textCol.Data()[i]
			}
			hits = append(hits, h)
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(hits)))
	return hits, nil
}

// Count 返回集合内文档数
func (r *Repository) Count(ctx context.Context) (int64, error) {
	if err := r.configured(); err != nil {
		return 0, err
	}
	ctx, span := tracer.Start(ctx, "milvus.Count",
		trace.WithAttributes(attribute.String("collection", r.collection)))
	defer span.End()

	rs, err := r.client.milvus.Query(ctx, r.collection, nil, "", []string{"count(*)"},
		client.WithSearchQueryConsistencyLevel(entity.ClStrong),
	)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	col, ok := rs.GetColumn("count(*)").(*entity.ColumnInt64)
	if !ok || len(col.Data()) == 0 {
		return 0, fmt.Errorf("unexpected count(*) result")
	}
	return col.Data()[0], nil
}

// Page 按偏移量分页读取
func (r *Repository) Page(ctx context.Context, offset, limit int) ([]*Row, error) {
	if err := r.configured(); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "milvus.Page",
		trace.WithAttributes(
			attribute.String("collection", r.collection),
			attribute.Int("offset", offset),
			attribute.Int("limit", limit),
		))
	defer span.End()

	rs, err := r.client.milvus.Query(ctx, r.collection, nil, fieldID+` != ""`,
		[]string{fieldID, fieldDocType, fieldText},
		client.WithOffset(int64(offset)),
		client.WithLimit(int64(limit)),
		client.WithSearchQueryConsistencyLevel(entity.ClStrong),
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}

	idCol, _ := rs.GetColumn(fieldID).(*entity.ColumnVarChar)
	typeCol, _ := rs.GetColumn(fieldDocType).(*entity.ColumnVarChar)
	textCol, _ := rs.GetColumn(fieldText).(*entity.ColumnVarChar)
	if idCol == nil {
		return nil, nil
	}
	rows := make([]*Row, 0, idCol.Len())
	for i, id := range idCol.Data() {
		row := &Row{ID: id}
		if typeCol != nil {
			row.DocType = typeCol.Data()[i]
		}
		if textCol != nil {
			row.TextContent = textCol.Data()[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// docTypeFilter 构建 doc_type 过滤表达式，空列表表示不过滤
func docTypeFilter(docTypes []string) string {
	quoted := make([]string, 0, len(docTypes))
	for _, t := range docTypes {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		quoted = append(quoted, strconv.Quote(t))
	}
	if len(quoted) == 0 {
		return ""
	}
	return fieldDocType + " in [" + strings.Join(quoted, ", ") + "]"
}
