// Package entity 定义领域实体
package entity

import "strings"

// RecordType CRM 记录类型
type RecordType string

const (
	RecordTypeCustomer    RecordType = "customer"
	RecordTypeQuote       RecordType = "quote"
	RecordTypeWorkHistory RecordType = "work_history"
)

// RecordTypes 全部可写入的记录类型（固定顺序）
var RecordTypes = []RecordType{RecordTypeCustomer, RecordTypeQuote, RecordTypeWorkHistory}

// ParseRecordType 解析记录类型，大小写不敏感
func ParseRecordType(s string) (RecordType, bool) {
	t := RecordType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case RecordTypeCustomer, RecordTypeQuote, RecordTypeWorkHistory:
		return t, true
	default:
		return "", false
	}
}

// Record CRM 记录（customer / quote / work_history 三选一）
type Record interface {
	RecordType() RecordType
	// NaturalKey 返回业务主键，缺失时返回空串
	NaturalKey() string
}

// QuoteStatus 报价状态
type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "draft"
	QuoteStatusSent     QuoteStatus = "sent"
	QuoteStatusApproved QuoteStatus = "approved"
	QuoteStatusRejected QuoteStatus = "rejected"
	QuoteStatusExpired  QuoteStatus = "expired"
)

// Valid 判断报价状态是否合法
func (s QuoteStatus) Valid() bool {
	switch s {
	case QuoteStatusDraft, QuoteStatusSent, QuoteStatusApproved, QuoteStatusRejected, QuoteStatusExpired:
		return true
	default:
		return false
	}
}

// WorkType 施工类型
type WorkType string

const (
	WorkTypeRepair      WorkType = "repair"
	WorkTypePaint       WorkType = "paint"
	WorkTypeInspection  WorkType = "inspection"
	WorkTypeMaintenance WorkType = "maintenance"
	WorkTypeOther       WorkType = "other"
)

// Valid 判断施工类型是否合法
func (w WorkType) Valid() bool {
	switch w {
	case WorkTypeRepair, WorkTypePaint, WorkTypeInspection, WorkTypeMaintenance, WorkTypeOther:
		return true
	default:
		return false
	}
}

// Customer 客户
type Customer struct {
	ID         string `json:"id,omitempty"`
	CustomerID string `json:"customerId,omitempty"`
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	Address    string `json:"address,omitempty"`
	TotalSales int64  `json:"totalSales"`
	VisitCount int    `json:"visitCount"`
	Notes      string `json:"notes,omitempty"`
}

func (c *Customer) RecordType() RecordType { return RecordTypeCustomer }

func (c *Customer) NaturalKey() string { return firstNonEmpty(c.ID, c.CustomerID) }

// LineItem 报价明细
type LineItem struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
	Total       int64  `json:"total,omitempty"`
}

// LineTotal 返回明细金额，未给出时按数量乘单价计算
func (l LineItem) LineTotal() int64 {
	if l.Total != 0 {
		return l.Total
	}
	return int64(l.Quantity) * l.UnitPrice
}

// Quote 报价单
type Quote struct {
	ID          string      `json:"id,omitempty"`
	QuoteID     string      `json:"quoteId,omitempty"`
	CustomerID  string      `json:"customerId"`
	Vehicle     string      `json:"vehicle"`
	LineItems   []LineItem  `json:"lineItems,omitempty"`
	TotalAmount int64       `json:"totalAmount"`
	Status      QuoteStatus `json:"status"`
	QuoteDate   string      `json:"quoteDate"`
	ExpiryDate  string      `json:"expiryDate,omitempty"`
	Notes       string      `json:"notes,omitempty"`
}

func (q *Quote) RecordType() RecordType { return RecordTypeQuote }

func (q *Quote) NaturalKey() string { return firstNonEmpty(q.ID, q.QuoteID) }

// Part 施工用料
type Part struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Cost     int64  `json:"cost"`
}

// WorkHistory 施工记录
type WorkHistory struct {
	ID          string   `json:"id,omitempty"`
	WorkID      string   `json:"workId,omitempty"`
	CustomerID  string   `json:"customerId"`
	Vehicle     string   `json:"vehicle"`
	WorkType    WorkType `json:"workType"`
	Description string   `json:"description"`
	Technician  string   `json:"technician"`
	Date        string   `json:"date"`
	PartsUsed   []Part   `json:"partsUsed,omitempty"`
	LaborCost   int64    `json:"laborCost"`
	PartsCost   int64    `json:"partsCost"`
	TotalCost   int64    `json:"totalCost"`
	// Rating 1..5，nil 表示未评价
	Rating *int   `json:"rating,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

func (w *WorkHistory) RecordType() RecordType { return RecordTypeWorkHistory }

func (w *WorkHistory) NaturalKey() string { return firstNonEmpty(w.ID, w.WorkID) }

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
