package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"crm-rag-api/internal/application/retrieval"
	"crm-rag-api/internal/domain/entity"
	"crm-rag-api/internal/interfaces/http/dto"
)

const ingestFailedMessage = "failed to ingest data"

// IngestHandler 数据写入处理器
type IngestHandler struct {
	indexer *retrieval.Indexer
}

// NewIngestHandler 创建数据写入处理器
func NewIngestHandler(indexer *retrieval.Indexer) *IngestHandler {
	return &IngestHandler{indexer: indexer}
}

// Ingest 写入单个数据源
// @Summary 写入单个数据源
// @Tags Ingest
// @Accept json
// @Produce json
// @Param body body dto.IngestRequest true "写入请求"
// @Success 200 {object} dto.IngestResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/ingest [post]
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req dto.IngestRequest
	if !bindJSON(c, &req) {
		return
	}
	src, ok := toIngestSource(c, &req, "")
	if !ok {
		return
	}
	if strings.TrimSpace(src.Source) == "" {
		dto.BadRequest(c, "source is required")
		return
	}

	n, err := h.indexer.IngestSource(c.Request.Context(), src)
	if err != nil {
		respondError(c, err, ingestFailedMessage)
		return
	}
	dto.JSON(c, http.StatusOK, dto.IngestResponse{Success: true, Count: n})
}

// Bulk 批量写入多个数据源，单个数据源失败不影响其余
// @Summary 批量写入
// @Tags Ingest
// @Accept json
// @Produce json
// @Param body body dto.BulkIngestRequest true "批量写入请求"
// @Success 200 {object} dto.BulkIngestResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/ingest/bulk [post]
func (h *IngestHandler) Bulk(c *gin.Context) {
	var req dto.BulkIngestRequest
	if !bindJSON(c, &req) {
		return
	}
	if len(req.Sources) == 0 {
		dto.BadRequest(c, "sources must be a non-empty array")
		return
	}

	// 空数据源按单源失败计入 failed，不拒绝整个请求
	sources := make([]retrieval.IngestSource, 0, len(req.Sources))
	for i := range req.Sources {
		src, ok := toIngestSource(c, &req.Sources[i], "sources["+strconv.Itoa(i)+"].")
		if !ok {
			return
		}
		sources = append(sources, src)
	}

	summary := h.indexer.IngestMultiSource(c.Request.Context(), sources)
	dto.JSON(c, http.StatusOK, dto.BulkIngestResponse{
		Success: true,
		Total:   summary.Total,
		ByType:  dto.ToByType(summary.ByType),
		Failed:  summary.Failed,
	})
}

func toIngestSource(c *gin.Context, req *dto.IngestRequest, field string) (retrieval.IngestSource, bool) {
	t, ok := entity.ParseRecordType(req.DataType)
	if !ok {
		dto.BadRequest(c, field+"dataType must be one of customer, quote, work_history")
		return retrieval.IngestSource{}, false
	}
	return retrieval.IngestSource{Source: req.SourceText(), Type: t, Metadata: req.Metadata}, true
}
