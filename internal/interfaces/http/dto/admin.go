package dto

import "crm-rag-api/internal/domain/entity"

// StatusResponse 集合状态
type StatusResponse struct {
	CollectionName string `json:"collectionName"`
	TotalDocuments int64  `json:"totalDocuments"`
}

// ResetResponse 重置结果
type ResetResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DocumentItem 文档列表条目
type DocumentItem struct {
	ID       string          `json:"id"`
	Content  string          `json:"content"`
	Metadata entity.Metadata `json:"metadata"`
}

// DocumentListResponse 文档分页列表
type DocumentListResponse struct {
	Documents  []DocumentItem `json:"documents"`
	NextCursor string         `json:"nextCursor,omitempty"`
}
