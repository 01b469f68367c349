package milvus

import (
	"context"
	"strconv"
	"time"

	"crm-rag-api/internal/application/retrieval"
	"crm-rag-api/pkg/metrics"
)

const backendName = "milvus"

// Index 基于 Milvus 的 retrieval.VectorIndex 实现。
// 元数据编码进 text_content 首行，doc_type 单独成列用于过滤。
type Index struct {
	repo       *Repository
	collection string
}

func NewIndex(repo *Repository, collection string) *Index {
	return &Index{repo: repo, collection: collection}
}

var _ retrieval.VectorIndex = (*Index)(nil)

func (x *Index) Name() string { return x.collection }

func (x *Index) Initialize(ctx context.Context) (err error) {
	if x == nil || x.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	defer func(start time.Time) { metrics.ObserveVectorOp(backendName, "initialize", start, err) }(time.Now())
	return x.repo.EnsureCollection(ctx)
}

func (x *Index) Ready(ctx context.Context) (bool, error) {
	if x == nil || x.repo == nil {
		return false, retrieval.ErrVectorDisabled
	}
	return x.repo.HasCollection(ctx)
}

func (x *Index) Upsert(ctx context.Context, docs []*retrieval.VectorDocument) (err error) {
	if x == nil || x.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	defer func(start time.Time) { metrics.ObserveVectorOp(backendName, "upsert", start, err) }(time.Now())

	rows := make([]*Row, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		text, err := retrieval.EncodeDocumentText(d.Metadata, d.Content)
		if err != nil {
			return err
		}
		rows = append(rows, &Row{
			ID:          d.ID,
			Vector:      d.Vector,
			DocType:     string(d.Metadata.Type),
			TextContent: text,
		})
	}
	return x.repo.Upsert(ctx, rows)
}

func (x *Index) Query(ctx context.Context, params *retrieval.VectorQueryParams) (_ []*retrieval.VectorHit, err error) {
	if x == nil || x.repo == nil {
		return nil, retrieval.ErrVectorDisabled
	}
	if params == nil || params.TopK <= 0 {
		return nil, nil
	}
	defer func(start time.Time) { metrics.ObserveVectorOp(backendName, "query", start, err) }(time.Now())

	types := make([]string, 0, len(params.Types))
	for _, t := range params.Types {
		types = append(types, string(t))
	}
	hits, err := x.repo.Search(ctx, params.Vector, params.TopK, types)
	if err != nil {
		return nil, err
	}

	out := make([]*retrieval.VectorHit, 0, len(hits))
	for _, h := range hits {
		meta, body := retrieval.DecodeDocumentText(h.TextContent)
		out = append(out, &retrieval.VectorHit{
			ID:       h.ID,
			Content:  body,
			Metadata: meta,
			// COSINE 返回相似度，换算为距离
			Distance: 1 - float64(h.Score),
		})
	}
	return out, nil
}

func (x *Index) Count(ctx context.Context) (_ int64, err error) {
	if x == nil || x.repo == nil {
		return 0, retrieval.ErrVectorDisabled
	}
	defer func(start time.Time) { metrics.ObserveVectorOp(backendName, "count", start, err) }(time.Now())
	return x.repo.Count(ctx)
}

func (x *Index) DeleteAll(ctx context.Context) (err error) {
	if x == nil || x.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	defer func(start time.Time) { metrics.ObserveVectorOp(backendName, "delete_all", start, err) }(time.Now())
	if err := x.repo.DropCollection(ctx); err != nil {
		return err
	}
	return x.repo.EnsureCollection(ctx)
}

// List 游标为十进制偏移量
func (x *Index) List(ctx context.Context, limit int, cursor string) (_ *retrieval.VectorPage, err error) {
	if x == nil || x.repo == nil {
		return nil, retrieval.ErrVectorDisabled
	}
	offset := 0
	if cursor != "" {
		offset, err = strconv.Atoi(cursor)
		if err != nil || offset < 0 {
			return nil, retrieval.NewValidationError("cursor", "invalid cursor")
		}
	}
	defer func(start time.Time) { metrics.ObserveVectorOp(backendName, "list", start, err) }(time.Now())

	rows, err := x.repo.Page(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	page := &retrieval.VectorPage{Documents: make([]*retrieval.VectorDocument, 0, len(rows))}
	for _, row := range rows {
		meta, body := retrieval.DecodeDocumentText(row.TextContent)
		page.Documents = append(page.Documents, &retrieval.VectorDocument{ID: row.ID, Content: body, Metadata: meta})
	}
	if len(rows) == limit {
		page.NextCursor = strconv.Itoa(offset + len(rows))
	}
	return page, nil
}
