package dto

import (
	"encoding/json"

	"crm-rag-api/internal/application/rag"
	"crm-rag-api/internal/domain/entity"
)

// QueryOptions 检索参数
type QueryOptions struct {
	TopK     *int     `json:"topK,omitempty"`
	MinScore *float64 `json:"minScore,omitempty"`
	Types    []string `json:"types,omitempty"`
}

// QueryRequest 单轮问答请求
type QueryRequest struct {
	Query   string        `json:"query"`
	Options *QueryOptions `json:"options,omitempty"`
}

// ConversationRequest 多轮问答请求，history 保留原始 JSON 以区分“缺省”与“非数组”
type ConversationRequest struct {
	QueryRequest
	History json.RawMessage `json:"history,omitempty"`
}

// Message 对话历史条目
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SourceResponse 引用文档
type SourceResponse struct {
	Content  string          `json:"content"`
	Metadata entity.Metadata `json:"metadata"`
	Score    float64         `json:"score"`
}

// QueryResponse 问答响应
type QueryResponse struct {
	Answer     string           `json:"answer"`
	Sources    []SourceResponse `json:"sources"`
	Confidence float64          `json:"confidence"`
}

// ToQueryResponse 转换问答结果
func ToQueryResponse(a *rag.Answer) *QueryResponse {
	resp := &QueryResponse{Sources: []SourceResponse{}}
	if a == nil {
		return resp
	}
	resp.Answer = a.Answer
	resp.Confidence = a.Confidence
	for _, s := range a.Sources {
		resp.Sources = append(resp.Sources, SourceResponse{Content: s.Content, Metadata: s.Metadata, Score: s.Score})
	}
	return resp
}
