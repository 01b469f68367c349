package retrieval

import (
	"sync"
	"sync/atomic"
)

// ResetGuard 协调集合重置与并发的写入/检索。
// 写入与检索持读锁；重置持写锁并递增 epoch。
// 在旧 epoch 下开始的写入会被拒绝，避免写入重建后的新集合。
type ResetGuard struct {
	mu    sync.RWMutex
	epoch atomic.Uint64
}

func NewResetGuard() *ResetGuard {
	return &ResetGuard{}
}

// Epoch 返回当前 epoch
func (g *ResetGuard) Epoch() uint64 {
	if g == nil {
		return 0
	}
	return g.epoch.Load()
}

// Read 在读锁下执行 fn
func (g *ResetGuard) Read(fn func() error) error {
	if g == nil {
		return fn()
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return fn()
}

// ReadAt 在读锁下执行 fn，epoch 已变化时返回 ErrIndexReset
func (g *ResetGuard) ReadAt(epoch uint64, fn func() error) error {
	if g == nil {
		return fn()
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.epoch.Load() != epoch {
		return ErrIndexReset
	}
	return fn()
}

// Exclusive 在写锁下执行 fn，结束后递增 epoch（无论 fn 是否成功，集合状态都已不可信）
func (g *ResetGuard) Exclusive(fn func() error) error {
	if g == nil {
		return fn()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	defer g.epoch.Add(1)
	return fn()
}
