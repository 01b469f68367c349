// Package memory 提供进程内的暴力余弦检索向量索引，用于测试与单机部署
package memory

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"crm-rag-api/internal/application/retrieval"
	"crm-rag-api/pkg/metrics"
)

const backendName = "memory"

// Store 按写入顺序保存文档，同 ID 覆盖原位置
type Store struct {
	mu          sync.RWMutex
	name        string
	dim         int
	initialized bool
	docs        []*retrieval.VectorDocument
	pos         map[string]int
}

var _ retrieval.VectorIndex = (*Store)(nil)

func NewStore(name string, dim int) *Store {
	return &Store{name: name, dim: dim, pos: make(map[string]int)}
}

func (s *Store) Name() string { return s.name }

func (s *Store) Initialize(context.Context) error {
	if s.dim <= 0 {
		return fmt.Errorf("invalid dimension %d", s.dim)
	}
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
	return nil
}

func (s *Store) Ready(context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized, nil
}

func (s *Store) Upsert(_ context.Context, docs []*retrieval.VectorDocument) (err error) {
	defer func(start time.Time) { metrics.ObserveVectorOp(backendName, "upsert", start, err) }(time.Now())

	for _, d := range docs {
		if d != nil && len(d.Vector) != s.dim {
			return fmt.Errorf("vector dimension mismatch for %s: want %d, got %d", d.ID, s.dim, len(d.Vector))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return retrieval.ErrIndexNotReady
	}
	for _, d := range docs {
		if d == nil {
			continue
		}
		cp := &retrieval.VectorDocument{
			ID:       d.ID,
			Content:  d.Content,
			Metadata: d.Metadata,
			Vector:   slices.Clone(d.Vector),
		}
		if i, ok := s.pos[d.ID]; ok {
			s.docs[i] = cp
			continue
		}
		s.pos[d.ID] = len(s.docs)
		s.docs = append(s.docs, cp)
	}
	return nil
}

func (s *Store) Query(_ context.Context, params *retrieval.VectorQueryParams) (_ []*retrieval.VectorHit, err error) {
	if params == nil || params.TopK <= 0 {
		return nil, nil
	}
	if len(params.Vector) != s.dim {
		return nil, fmt.Errorf("query vector dimension mismatch: want %d, got %d", s.dim, len(params.Vector))
	}
	defer func(start time.Time) { metrics.ObserveVectorOp(backendName, "query", start, err) }(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, retrieval.ErrIndexNotReady
	}

	hits := make([]*retrieval.VectorHit, 0, len(s.docs))
	for _, d := range s.docs {
		if len(params.Types) > 0 && !slices.Contains(params.Types, d.Metadata.Type) {
			continue
		}
		hits = append(hits, &retrieval.VectorHit{
			ID:       d.ID,
			Content:  d.Content,
			Metadata: d.Metadata,
			Distance: 1 - cosine(d.Vector, params.Vector),
		})
	}
	// 距离相同按写入顺序
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > params.TopK {
		hits = hits[:params.TopK]
	}
	return hits, nil
}

func (s *Store) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.docs)), nil
}

func (s *Store) DeleteAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = nil
	s.pos = make(map[string]int)
	s.initialized = true
	return nil
}

// List 游标为十进制偏移量
func (s *Store) List(_ context.Context, limit int, cursor string) (*retrieval.VectorPage, error) {
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return nil, retrieval.NewValidationError("cursor", "invalid cursor")
		}
		offset = n
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	page := &retrieval.VectorPage{}
	if offset >= len(s.docs) {
		return page, nil
	}
	end := len(s.docs)
	if limit > 0 {
		end = min(offset+limit, len(s.docs))
	}
	for _, d := range s.docs[offset:end] {
		page.Documents = append(page.Documents, &retrieval.VectorDocument{ID: d.ID, Content: d.Content, Metadata: d.Metadata})
	}
	if end < len(s.docs) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
