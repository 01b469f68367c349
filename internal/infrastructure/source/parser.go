// Package source 将请求中的原始数据源（JSON / CSV 文本）解析为 CRM 记录
package source

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"crm-rag-api/internal/application/retrieval"
	"crm-rag-api/internal/domain/entity"
)

// Parser 数据源解析器
type Parser struct {
	maxBytes int
}

var _ retrieval.SourceParser = (*Parser)(nil)

// NewParser maxBytes <= 0 表示不限制
func NewParser(maxBytes int) *Parser {
	return &Parser{maxBytes: maxBytes}
}

// Parse 解析单个数据源。JSON 支持单对象、数组及 {records|data: [...]} 包装；其余按带表头的 CSV 解析。
func (p *Parser) Parse(source string, t entity.RecordType) ([]entity.Record, error) {
	if _, ok := entity.ParseRecordType(string(t)); !ok {
		return nil, retrieval.NewValidationError("dataType", fmt.Sprintf("unsupported data type %q", t))
	}
	if p.maxBytes > 0 && len(source) > p.maxBytes {
		return nil, retrieval.NewValidationError("source", fmt.Sprintf("source exceeds %d bytes", p.maxBytes))
	}
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return nil, retrieval.NewValidationError("source", "source is empty")
	}

	if trimmed[0] == '{' || trimmed[0] == '[' {
		return parseJSON([]byte(trimmed), t)
	}
	return parseCSV(trimmed, t)
}

func parseJSON(data []byte, t entity.RecordType) ([]entity.Record, error) {
	items, err := splitJSON(data)
	if err != nil {
		return nil, retrieval.NewValidationError("source", "invalid JSON: "+err.Error())
	}
	out := make([]entity.Record, 0, len(items))
	for i, raw := range items {
		rec := newRecord(t)
		if err := json.Unmarshal(raw, rec); err != nil {
			return nil, retrieval.NewValidationError(fmt.Sprintf("source[%d]", i), err.Error())
		}
		out = append(out, rec)
	}
	return out, nil
}

// splitJSON 将 JSON 数据源统一为记录数组
func splitJSON(data []byte) ([]json.RawMessage, error) {
	if data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	for _, key := range []string{"records", "data"} {
		raw, ok := obj[key]
		if !ok || len(bytes.TrimSpace(raw)) == 0 || bytes.TrimSpace(raw)[0] != '[' {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	return []json.RawMessage{data}, nil
}

func newRecord(t entity.RecordType) entity.Record {
	switch t {
	case entity.RecordTypeQuote:
		return &entity.Quote{}
	case entity.RecordTypeWorkHistory:
		return &entity.WorkHistory{}
	default:
		return &entity.Customer{}
	}
}

func parseCSV(text string, t entity.RecordType) ([]entity.Record, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, retrieval.NewValidationError("source", "invalid CSV header: "+err.Error())
	}
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = canonicalColumn(h)
	}

	var out []entity.Record
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, retrieval.NewValidationError("source", fmt.Sprintf("invalid CSV at line %d: %v", line, err))
		}
		fields := make(map[string]string, len(cols))
		for i, v := range row {
			if i < len(cols) && cols[i] != "" {
				fields[cols[i]] = strings.TrimSpace(v)
			}
		}
		rec, err := recordFromFields(fields, t)
		if err != nil {
			return nil, retrieval.NewValidationError(fmt.Sprintf("source line %d", line), err.Error())
		}
		out = append(out, rec)
	}
	return out, nil
}

// canonicalColumn 表头归一：小写并去掉空格、下划线、连字符
func canonicalColumn(h string) string {
	h = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(h))
}

type fieldReader struct {
	fields map[string]string
	err    error
}

func (f *fieldReader) str(keys ...string) string {
	for _, k := range keys {
		if v, ok := f.fields[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

func (f *fieldReader) amount(keys ...string) int64 {
	s := strings.ReplaceAll(f.str(keys...), ",", "")
	if s == "" || f.err != nil {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fv, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			f.err = fmt.Errorf("%s: invalid number %q", keys[0], s)
			return 0
		}
		return int64(fv)
	}
	return n
}

func (f *fieldReader) count(keys ...string) int {
	return int(f.amount(keys...))
}

func recordFromFields(fields map[string]string, t entity.RecordType) (entity.Record, error) {
	f := &fieldReader{fields: fields}
	var rec entity.Record

	switch t {
	case entity.RecordTypeQuote:
		q := &entity.Quote{
			ID:          f.str("id"),
			QuoteID:     f.str("quoteid"),
			CustomerID:  f.str("customerid"),
			Vehicle:     f.str("vehicle"),
			TotalAmount: f.amount("totalamount", "total"),
			Status:      entity.QuoteStatus(strings.ToLower(f.str("status"))),
			QuoteDate:   f.str("quotedate", "date"),
			ExpiryDate:  f.str("expirydate"),
			Notes:       f.str("notes"),
		}
		items, err := parseList(f.str("lineitems", "items"), 3)
		if err != nil {
			return nil, fmt.Errorf("lineItems: %w", err)
		}
		for _, it := range items {
			q.LineItems = append(q.LineItems, entity.LineItem{Description: it.name, Quantity: it.qty, UnitPrice: it.amount})
		}
		rec = q

	case entity.RecordTypeWorkHistory:
		w := &entity.WorkHistory{
			ID:          f.str("id"),
			WorkID:      f.str("workid"),
			CustomerID:  f.str("customerid"),
			Vehicle:     f.str("vehicle"),
			WorkType:    entity.WorkType(strings.ToLower(f.str("worktype", "type"))),
			Description: f.str("description"),
			Technician:  f.str("technician"),
			Date:        f.str("date"),
			LaborCost:   f.amount("laborcost"),
			PartsCost:   f.amount("partscost"),
			TotalCost:   f.amount("totalcost"),
			Notes:       f.str("notes"),
		}
		if f.str("rating") != "" {
			r := f.count("rating")
			w.Rating = &r
		}
		parts, err := parseList(f.str("partsused", "parts"), 3)
		if err != nil {
			return nil, fmt.Errorf("partsUsed: %w", err)
		}
		for _, it := range parts {
			w.PartsUsed = append(w.PartsUsed, entity.Part{Name: it.name, Quantity: it.qty, Cost: it.amount})
		}
		rec = w

	default:
		rec = &entity.Customer{
			ID:         f.str("id"),
			CustomerID: f.str("customerid"),
			Name:       f.str("name"),
			Phone:      f.str("phone"),
			Email:      f.str("email"),
			Address:    f.str("address"),
			TotalSales: f.amount("totalsales"),
			VisitCount: f.count("visitcount"),
			Notes:      f.str("notes"),
		}
	}

	if f.err != nil {
		return nil, f.err
	}
	return rec, nil
}

type listItem struct {
	name   string
	qty    int
	amount int64
}

// parseList 解析 "desc:qty:price;desc:qty:price" 形式的明细
func parseList(s string, arity int) ([]listItem, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []listItem
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != arity {
			return nil, fmt.Errorf("entry %q must be desc:qty:price", entry)
		}
		qty, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("entry %q: invalid quantity", entry)
		}
		amount, err := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("entry %q: invalid price", entry)
		}
		out = append(out, listItem{name: strings.TrimSpace(parts[0]), qty: qty, amount: amount})
	}
	return out, nil
}
