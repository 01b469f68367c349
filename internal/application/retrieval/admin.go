package retrieval

import (
	"context"
	"time"

	"crm-rag-api/pkg/logger"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// IndexStatus 集合状态
type IndexStatus struct {
	CollectionName string
	TotalDocuments int64
}

// IndexManager 集合管理：状态、重置、分页浏览
type IndexManager struct {
	index VectorIndex
	guard *ResetGuard
}

func NewIndexManager(index VectorIndex, guard *ResetGuard) *IndexManager {
	return &IndexManager{index: index, guard: guard}
}

// Initialize 确保集合存在并已加载
func (m *IndexManager) Initialize(ctx context.Context) error {
	if m == nil || m.index == nil {
		return ErrVectorDisabled
	}
	if err := m.index.Initialize(ctx); err != nil {
		return Upstream(ServiceVectorDB, err)
	}
	return nil
}

func (m *IndexManager) Status(ctx context.Context) (*IndexStatus, error) {
	if m == nil || m.index == nil {
		return nil, ErrVectorDisabled
	}
	ready, err := m.index.Ready(ctx)
	if err != nil {
		return nil, Upstream(ServiceVectorDB, err)
	}
	if !ready {
		return nil, ErrIndexNotReady
	}
	n, err := m.index.Count(ctx)
	if err != nil {
		return nil, Upstream(ServiceVectorDB, err)
	}
	return &IndexStatus{CollectionName: m.index.Name(), TotalDocuments: n}, nil
}

// Reset 删除全部文档并重建空集合。
// 持写锁执行，进行中的写入在完成前会阻塞重置，重置后旧 epoch 的写入被拒绝。
func (m *IndexManager) Reset(ctx context.Context) error {
	if m == nil || m.index == nil {
		return ErrVectorDisabled
	}
	start := time.Now()
	err := m.guard.Exclusive(func() error {
		return m.index.DeleteAll(ctx)
	})
	if err != nil {
		logger.Error(ctx, "reset vector index failed", err, "collection", m.index.Name())
		return Upstream(ServiceVectorDB, err)
	}
	logger.Info(ctx, "vector index reset",
		"collection", m.index.Name(),
		"epoch", m.guard.Epoch(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// List 分页列出文档
func (m *IndexManager) List(ctx context.Context, limit int, cursor string) (*VectorPage, error) {
	if m == nil || m.index == nil {
		return nil, ErrVectorDisabled
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	ready, err := m.index.Ready(ctx)
	if err != nil {
		return nil, Upstream(ServiceVectorDB, err)
	}
	if !ready {
		return nil, ErrIndexNotReady
	}

	var page *VectorPage
	err = m.guard.Read(func() error {
		var lerr error
		page, lerr = m.index.List(ctx, limit, cursor)
		return lerr
	})
	if err != nil {
		return nil, Upstream(ServiceVectorDB, err)
	}
	return page, nil
}
