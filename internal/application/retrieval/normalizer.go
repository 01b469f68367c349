package retrieval

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"crm-rag-api/internal/domain/entity"
)

// UnsetMarker 可选字段缺失时的占位文本
const UnsetMarker = "(unset)"

const noneMarker = "(none)"

// DocumentID 返回 {type}_{key}
func DocumentID(t entity.RecordType, key string) string {
	return string(t) + "_" + key
}

// FallbackKey 业务主键缺失时的批内确定性主键
func FallbackKey(batchDigest string, ordinal int) string {
	if batchDigest == "" {
		return "auto-" + strconv.Itoa(ordinal)
	}
	return batchDigest + "-" + strconv.Itoa(ordinal)
}

// BatchDigest 计算批次内容的短摘要，用于 FallbackKey
func BatchDigest(records []entity.Record) string {
	b, err := json.Marshal(records)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:12]
}

// Normalize 将 CRM 记录转换为文档 ID 与检索文本（纯函数）。
// 每行一个事实，标签按类型固定；缺失的可选字段输出 UnsetMarker。
func Normalize(rec entity.Record, typeTag entity.RecordType, fallbackKey string) (string, string, error) {
	if rec == nil {
		return "", "", NewValidationError("record", "record is nil")
	}
	if rec.RecordType() != typeTag {
		return "", "", NewValidationError("dataType", fmt.Sprintf("record of type %s cannot be ingested as %s", rec.RecordType(), typeTag))
	}

	key := rec.NaturalKey()
	if key == "" {
		key = strings.TrimSpace(fallbackKey)
	}
	if key == "" {
		return "", "", NewValidationError("id", "record has no id and no fallback key")
	}

	var w lineWriter
	w.line("Record type", string(typeTag))
	switch r := rec.(type) {
	case *entity.Customer:
		writeCustomer(&w, key, r)
	case *entity.Quote:
		writeQuote(&w, key, r)
	case *entity.WorkHistory:
		writeWorkHistory(&w, key, r)
	default:
		return "", "", NewValidationError("record", fmt.Sprintf("unsupported record %T", rec))
	}

	return DocumentID(typeTag, key), w.String(), nil
}

func writeCustomer(w *lineWriter, key string, c *entity.Customer) {
	w.line("Customer ID", key)
	w.optional("Name", c.Name)
	w.optional("Phone", c.Phone)
	w.optional("Email", c.Email)
	w.optional("Address", c.Address)
	w.line("Total sales", strconv.FormatInt(c.TotalSales, 10))
	w.line("Visit count", strconv.Itoa(c.VisitCount))
	w.optional("Notes", c.Notes)
}

func writeQuote(w *lineWriter, key string, q *entity.Quote) {
	w.line("Quote ID", key)
	w.optional("Customer ID", q.CustomerID)
	w.optional("Vehicle", q.Vehicle)
	w.optional("Status", string(q.Status))
	w.optional("Quote date", q.QuoteDate)
	w.optional("Expiry date", q.ExpiryDate)
	w.line("Total amount", strconv.FormatInt(q.TotalAmount, 10))
	if len(q.LineItems) == 0 {
		w.line("Line items", noneMarker)
	} else {
		w.header("Line items")
		for _, item := range q.LineItems {
			w.item(fmt.Sprintf("%s x%d @ %d = %d", orUnset(item.Description), item.Quantity, item.UnitPrice, item.LineTotal()))
		}
	}
	w.optional("Notes", q.Notes)
}

func writeWorkHistory(w *lineWriter, key string, h *entity.WorkHistory) {
	w.line("Work ID", key)
	w.optional("Customer ID", h.CustomerID)
	w.optional("Vehicle", h.Vehicle)
	w.optional("Work type", string(h.WorkType))
	w.optional("Description", h.Description)
	w.optional("Technician", h.Technician)
	w.optional("Date", h.Date)
	if len(h.PartsUsed) == 0 {
		w.line("Parts used", noneMarker)
	} else {
		w.header("Parts used")
		for _, p := range h.PartsUsed {
			w.item(fmt.Sprintf("%s x%d (cost %d)", orUnset(p.Name), p.Quantity, p.Cost))
		}
	}
	w.line("Labor cost", strconv.FormatInt(h.LaborCost, 10))
	w.line("Parts cost", strconv.FormatInt(h.PartsCost, 10))
	w.line("Total cost", strconv.FormatInt(h.TotalCost, 10))
	if h.Rating != nil {
		w.line("Rating", strconv.Itoa(*h.Rating)+"/5")
	} else {
		w.line("Rating", UnsetMarker)
	}
	w.optional("Notes", h.Notes)
}

type lineWriter struct {
	sb strings.Builder
}

func (w *lineWriter) line(label, value string) {
	if w.sb.Len() > 0 {
		w.sb.WriteByte('\n')
	}
	w.sb.WriteString(label)
	w.sb.WriteString(": ")
	w.sb.WriteString(compactOneLine(value))
}

func (w *lineWriter) optional(label, value string) {
	w.line(label, orUnset(value))
}

func (w *lineWriter) header(label string) {
	if w.sb.Len() > 0 {
		w.sb.WriteByte('\n')
	}
	w.sb.WriteString(label)
	w.sb.WriteByte(':')
}

func (w *lineWriter) item(text string) {
	w.sb.WriteString("\n  - ")
	w.sb.WriteString(compactOneLine(text))
}

func (w *lineWriter) String() string { return w.sb.String() }

func orUnset(s string) string {
	if strings.TrimSpace(s) == "" {
		return UnsetMarker
	}
	return s
}

// compactOneLine 折叠换行与连续空白，保证“一行一个事实”
func compactOneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
