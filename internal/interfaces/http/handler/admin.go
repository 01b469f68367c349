package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"crm-rag-api/internal/application/retrieval"
	"crm-rag-api/internal/interfaces/http/dto"
	"crm-rag-api/pkg/errors"
)

// AdminHandler 集合管理处理器
type AdminHandler struct {
	manager *retrieval.IndexManager
}

// NewAdminHandler 创建集合管理处理器
func NewAdminHandler(manager *retrieval.IndexManager) *AdminHandler {
	return &AdminHandler{manager: manager}
}

// Status 集合状态
// @Summary 集合状态
// @Tags Admin
// @Produce json
// @Success 200 {object} dto.StatusResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/status [get]
func (h *AdminHandler) Status(c *gin.Context) {
	st, err := h.manager.Status(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to read collection status")
		return
	}
	dto.JSON(c, http.StatusOK, dto.StatusResponse{
		CollectionName: st.CollectionName,
		TotalDocuments: st.TotalDocuments,
	})
}

// Reset 删除全部文档并重建空集合
// @Summary 重置集合
// @Tags Admin
// @Produce json
// @Success 200 {object} dto.ResetResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/reset [post]
func (h *AdminHandler) Reset(c *gin.Context) {
	if err := h.manager.Reset(c.Request.Context()); err != nil {
		if toAppError(err, "").HTTPStatus == http.StatusInternalServerError {
			err = errors.Wrap(err, errors.CodeResetFailed, "failed to reset collection")
		}
		respondError(c, err, "failed to reset collection")
		return
	}
	dto.JSON(c, http.StatusOK, dto.ResetResponse{Success: true, Message: "collection reset"})
}

// Documents 分页浏览文档
// @Summary 文档列表
// @Tags Admin
// @Produce json
// @Param limit query int false "每页数量"
// @Param cursor query string false "游标"
// @Success 200 {object} dto.DocumentListResponse
// @Router /api/documents [get]
func (h *AdminHandler) Documents(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			dto.BadRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	page, err := h.manager.List(c.Request.Context(), limit, c.Query("cursor"))
	if err != nil {
		respondError(c, err, "failed to list documents")
		return
	}
	resp := dto.DocumentListResponse{Documents: make([]dto.DocumentItem, 0, len(page.Documents)), NextCursor: page.NextCursor}
	for _, d := range page.Documents {
		resp.Documents = append(resp.Documents, dto.DocumentItem{ID: d.ID, Content: d.Content, Metadata: d.Metadata})
	}
	dto.JSON(c, http.StatusOK, resp)
}
