package dto

import (
	"bytes"
	"encoding/json"

	"crm-rag-api/internal/domain/entity"
)

// IngestRequest 单数据源写入请求。
// source 可以是 JSON/CSV 文本字符串，也可以直接是 JSON 对象或数组。
type IngestRequest struct {
	Source   json.RawMessage `json:"source"`
	DataType string          `json:"dataType"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

// SourceText 返回数据源文本
func (r *IngestRequest) SourceText() string {
	raw := bytes.TrimSpace(r.Source)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// IngestResponse 单数据源写入响应
type IngestResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

// BulkIngestRequest 多数据源写入请求
type BulkIngestRequest struct {
	Sources []IngestRequest `json:"sources"`
}

// BulkIngestResponse 多数据源写入响应
type BulkIngestResponse struct {
	Success bool           `json:"success"`
	Total   int            `json:"total"`
	ByType  map[string]int `json:"byType"`
	Failed  int            `json:"failed"`
}

// ToByType 转换各类型计数
func ToByType(in map[entity.RecordType]int) map[string]int {
	out := make(map[string]int, len(in))
	for t, n := range in {
		out[string(t)] = n
	}
	return out
}
