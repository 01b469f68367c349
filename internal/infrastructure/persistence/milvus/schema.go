package milvus

import (
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	fieldID      = "id"
	fieldVector  = "vector"
	fieldDocType = "doc_type"
	fieldText    = "text_content"

	maxIDLength   = 256
	maxTextLength = 65535
)

// DocumentsSchema CRM 文档 Collection Schema
func DocumentsSchema(collection string, dim int) *entity.Schema {
	return &entity.Schema{
		CollectionName: collection,
		Description:    "CRM records (customer / quote / work_history) for semantic search",
		Fields: []*entity.Field{
			{
				Name:       fieldID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": strconv.Itoa(maxIDLength),
				},
			},
			{
				Name:     fieldVector,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(dim),
				},
			},
			{
				Name:     fieldDocType,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "32",
				},
			},
			{
				Name:     fieldText,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": strconv.Itoa(maxTextLength),
				},
			},
		},
	}
}

// Row 文档行
type Row struct {
	ID          string
	Vector      []float32
	DocType     string
	TextContent string
}

// Hit 检索命中
type Hit struct {
	ID          string
	Score       float32
	DocType     string
	TextContent string
}
