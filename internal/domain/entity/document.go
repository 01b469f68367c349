package entity

import (
	"encoding/json"
	"fmt"
	"maps"
)

// CustomerMeta 客户文档的结构化元数据
type CustomerMeta struct {
	Name       string `json:"name"`
	TotalSales int64  `json:"totalSales"`
	VisitCount int    `json:"visitCount"`
}

// QuoteMeta 报价文档的结构化元数据
type QuoteMeta struct {
	CustomerID  string      `json:"customerId"`
	Status      QuoteStatus `json:"status"`
	TotalAmount int64       `json:"totalAmount"`
	QuoteDate   string      `json:"quoteDate"`
}

// WorkHistoryMeta 施工记录文档的结构化元数据
type WorkHistoryMeta struct {
	CustomerID string   `json:"customerId"`
	WorkType   WorkType `json:"workType"`
	Date       string   `json:"date"`
	TotalCost  int64    `json:"totalCost"`
	Technician string   `json:"technician"`
}

var (
	customerMetaKeys    = []string{"name", "totalSales", "visitCount"}
	quoteMetaKeys       = []string{"customerId", "status", "totalAmount", "quoteDate"}
	workHistoryMetaKeys = []string{"customerId", "workType", "date", "totalCost", "technician"}
)

// Metadata 向量文档元数据，按 type 区分变体。
// 序列化为扁平对象：已建模字段优先，Extra 仅承载透传字段。
type Metadata struct {
	Type RecordType
	ID   string

	Customer    *CustomerMeta
	Quote       *QuoteMeta
	WorkHistory *WorkHistoryMeta

	Extra map[string]any
}

// MetadataFor 按记录变体构造元数据，key 为记录业务主键
func MetadataFor(key string, rec Record) Metadata {
	m := Metadata{Type: rec.RecordType(), ID: key}
	switch r := rec.(type) {
	case *Customer:
		m.Customer = &CustomerMeta{Name: r.Name, TotalSales: r.TotalSales, VisitCount: r.VisitCount}
	case *Quote:
		m.Quote = &QuoteMeta{CustomerID: r.CustomerID, Status: r.Status, TotalAmount: r.TotalAmount, QuoteDate: r.QuoteDate}
	case *WorkHistory:
		m.WorkHistory = &WorkHistoryMeta{
			CustomerID: r.CustomerID,
			WorkType:   r.WorkType,
			Date:       r.Date,
			TotalCost:  r.TotalCost,
			Technician: r.Technician,
		}
	}
	return m
}

// WithExtra 合并透传字段，返回副本
func (m Metadata) WithExtra(extra map[string]any) Metadata {
	if len(extra) == 0 {
		return m
	}
	merged := make(map[string]any, len(m.Extra)+len(extra))
	maps.Copy(merged, m.Extra)
	maps.Copy(merged, extra)
	m.Extra = merged
	return m
}

// Get 按扁平键读取元数据值
func (m Metadata) Get(key string) (any, bool) {
	flat, err := m.flatten()
	if err != nil {
		return nil, false
	}
	v, ok := flat[key]
	return v, ok
}

func (m Metadata) flatten() (map[string]any, error) {
	out := make(map[string]any, len(m.Extra)+8)
	maps.Copy(out, m.Extra)

	var variant any
	switch {
	case m.Customer != nil:
		variant = m.Customer
	case m.Quote != nil:
		variant = m.Quote
	case m.WorkHistory != nil:
		variant = m.WorkHistory
	}
	if variant != nil {
		b, err := json.Marshal(variant)
		if err != nil {
			return nil, err
		}
		var known map[string]any
		if err := json.Unmarshal(b, &known); err != nil {
			return nil, err
		}
		maps.Copy(out, known)
	}

	out["type"] = string(m.Type)
	if m.ID != "" {
		out["id"] = m.ID
	}
	return out, nil
}

// MarshalJSON 输出扁平对象
func (m Metadata) MarshalJSON() ([]byte, error) {
	flat, err := m.flatten()
	if err != nil {
		return nil, err
	}
	return json.Marshal(flat)
}

// UnmarshalJSON 按 type 还原变体，其余键进入 Extra
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out Metadata
	if v, ok := raw["type"]; ok {
		var t string
		if err := json.Unmarshal(v, &t); err != nil {
			return fmt.Errorf("metadata type: %w", err)
		}
		out.Type = RecordType(t)
		delete(raw, "type")
	}
	if v, ok := raw["id"]; ok {
		if err := json.Unmarshal(v, &out.ID); err != nil {
			return fmt.Errorf("metadata id: %w", err)
		}
		delete(raw, "id")
	}

	var keys []string
	switch out.Type {
	case RecordTypeCustomer:
		out.Customer = &CustomerMeta{}
		if err := json.Unmarshal(data, out.Customer); err != nil {
			return fmt.Errorf("customer metadata: %w", err)
		}
		keys = customerMetaKeys
	case RecordTypeQuote:
		out.Quote = &QuoteMeta{}
		if err := json.Unmarshal(data, out.Quote); err != nil {
			return fmt.Errorf("quote metadata: %w", err)
		}
		keys = quoteMetaKeys
	case RecordTypeWorkHistory:
		out.WorkHistory = &WorkHistoryMeta{}
		if err := json.Unmarshal(data, out.WorkHistory); err != nil {
			return fmt.Errorf("work history metadata: %w", err)
		}
		keys = workHistoryMetaKeys
	}
	for _, k := range keys {
		delete(raw, k)
	}

	if len(raw) > 0 {
		out.Extra = make(map[string]any, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return fmt.Errorf("metadata %s: %w", k, err)
			}
			out.Extra[k] = val
		}
	}

	*m = out
	return nil
}

// Document 向量文档
type Document struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Metadata  Metadata  `json:"metadata"`
	Embedding []float32 `json:"-"`
}

// SearchResult 检索结果
type SearchResult struct {
	Document Document
	// Score 相关度 [0,1]，距离为 0 时为 1
	Score float64
	// Distance 向量库原始距离，后端不提供时为 nil
	Distance *float64
}
