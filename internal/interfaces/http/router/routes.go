// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterAPIRoutes 注册 /api 路由
func RegisterAPIRoutes(api *gin.RouterGroup, h *Handlers) {
	// 问答
	api.POST("/query", h.Query.Query)
	api.POST("/query/conversation", h.Query.Conversation)

	// 数据写入
	api.POST("/ingest", h.Ingest.Ingest)
	api.POST("/ingest/bulk", h.Ingest.Bulk)

	// 集合管理
	api.GET("/status", h.Admin.Status)
	api.POST("/reset", h.Admin.Reset)
	api.GET("/documents", h.Admin.Documents)
}
