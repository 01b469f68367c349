package retrieval

import (
	"context"

	"crm-rag-api/internal/domain/entity"
)

// VectorIndex 定义应用层对“向量存储/检索”的最小依赖（port）。
// 由基础设施层提供具体实现（Milvus / Qdrant / 内存）。
type VectorIndex interface {
	// Name 返回集合名
	Name() string
	// Initialize 创建（若不存在）并加载集合
	Initialize(ctx context.Context) error
	// Ready 报告集合是否已初始化可用
	Ready(ctx context.Context) (bool, error)
	// Upsert 按 ID 覆盖写入
	Upsert(ctx context.Context, docs []*VectorDocument) error
	// Query 返回按距离升序的最近邻
	Query(ctx context.Context, params *VectorQueryParams) ([]*VectorHit, error)
	Count(ctx context.Context) (int64, error)
	// DeleteAll 删除全部文档并重建空集合
	DeleteAll(ctx context.Context) error
	// List 分页列出文档，cursor 为空表示第一页
	List(ctx context.Context, limit int, cursor string) (*VectorPage, error)
}

type VectorDocument struct {
	ID       string
	Content  string
	Metadata entity.Metadata
	Vector   []float32
}

type VectorQueryParams struct {
	Vector []float32
	TopK   int

	// Types 为空表示不过滤
	Types []entity.RecordType
}

type VectorHit struct {
	ID       string
	Content  string
	Metadata entity.Metadata
	// Distance 余弦距离（1 - cos），越小越相似
	Distance float64
}

type VectorPage struct {
	Documents  []*VectorDocument
	NextCursor string
}
