// Package testutil 提供测试用的 Embedder 与 ChatModel 替身
package testutil

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// HashEmbedder 词袋哈希向量，结果确定
type HashEmbedder struct {
	Dim int
	// Err 非 nil 时所有调用失败
	Err error

	mu    sync.Mutex
	calls int
	texts []string
}

var _ embedding.Embedder = (*HashEmbedder)(nil)

func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{Dim: dim}
}

func (e *HashEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	e.mu.Lock()
	e.calls++
	e.texts = append(e.texts, texts...)
	e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}

	out := make([][]float64, len(texts))
	for i, t := range texts {
		v := make([]float64, e.Dim)
		v[0] = 1
		for _, w := range strings.Fields(strings.ToLower(t)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(w))
			v[int(h.Sum32())%e.Dim]++
		}
		out[i] = v
	}
	return out, nil
}

// Calls 返回调用次数
func (e *HashEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// ChatModel 记录输入并返回固定回复
type ChatModel struct {
	Reply *schema.Message
	Err   error

	mu    sync.Mutex
	input []*schema.Message
}

var _ model.BaseChatModel = (*ChatModel)(nil)

func (m *ChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.input = input
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Reply == nil {
		return schema.AssistantMessage("ok", nil), nil
	}
	return m.Reply, nil
}

func (m *ChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

// LastInput 返回最近一次 Generate 的输入
func (m *ChatModel) LastInput() []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.input
}

// ChatFactory 始终返回同一个 ChatModel
type ChatFactory struct {
	Model *ChatModel
	Err   error
}

func (f *ChatFactory) Get(context.Context, string) (model.BaseChatModel, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Model, nil
}
