// Package handler 提供 HTTP 请求处理器
package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"crm-rag-api/internal/application/rag"
	"crm-rag-api/internal/domain/entity"
	"crm-rag-api/internal/interfaces/http/dto"
)

// queryFailedMessage 问答失败时的对外文案
const queryFailedMessage = "Sorry, something went wrong while answering your question. Please try again."

// QueryHandler 问答处理器
type QueryHandler struct {
	orchestrator *rag.Orchestrator
}

// NewQueryHandler 创建问答处理器
func NewQueryHandler(orchestrator *rag.Orchestrator) *QueryHandler {
	return &QueryHandler{orchestrator: orchestrator}
}

// Query 单轮问答
// @Summary 单轮问答
// @Tags Query
// @Accept json
// @Produce json
// @Param body body dto.QueryRequest true "问答请求"
// @Success 200 {object} dto.QueryResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/query [post]
func (h *QueryHandler) Query(c *gin.Context) {
	var req dto.QueryRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		dto.BadRequest(c, "query is required")
		return
	}
	opts, ok := toQueryOptions(c, req.Options)
	if !ok {
		return
	}

	ans, err := h.orchestrator.Query(c.Request.Context(), rag.QueryInput{Query: req.Query, Options: opts})
	if err != nil {
		respondError(c, err, queryFailedMessage)
		return
	}
	dto.JSON(c, http.StatusOK, dto.ToQueryResponse(ans))
}

// Conversation 多轮问答，history 由客户端维护
// @Summary 多轮问答
// @Tags Query
// @Accept json
// @Produce json
// @Param body body dto.ConversationRequest true "多轮问答请求"
// @Success 200 {object} dto.QueryResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/query/conversation [post]
func (h *QueryHandler) Conversation(c *gin.Context) {
	var req dto.ConversationRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		dto.BadRequest(c, "query is required")
		return
	}
	history, ok := toHistory(c, req.History)
	if !ok {
		return
	}
	opts, ok := toQueryOptions(c, req.Options)
	if !ok {
		return
	}

	ans, err := h.orchestrator.QueryWithHistory(c.Request.Context(), rag.QueryInput{
		Query:   req.Query,
		Options: opts,
		History: history,
	})
	if err != nil {
		respondError(c, err, queryFailedMessage)
		return
	}
	dto.JSON(c, http.StatusOK, dto.ToQueryResponse(ans))
}

func toQueryOptions(c *gin.Context, in *dto.QueryOptions) (*rag.QueryOptions, bool) {
	if in == nil {
		return nil, true
	}
	opts := &rag.QueryOptions{MinScore: in.MinScore}
	if in.TopK != nil {
		opts.TopK = *in.TopK
	}
	for _, s := range in.Types {
		t, ok := entity.ParseRecordType(s)
		if !ok {
			dto.BadRequest(c, "unsupported type in options.types: "+s)
			return nil, false
		}
		opts.Types = append(opts.Types, t)
	}
	return opts, true
}

func toHistory(c *gin.Context, raw json.RawMessage) ([]entity.Message, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, true
	}
	if raw[0] != '[' {
		dto.BadRequest(c, "history must be an array")
		return nil, false
	}
	var items []dto.Message
	if err := json.Unmarshal(raw, &items); err != nil {
		dto.BadRequest(c, "invalid history: "+err.Error())
		return nil, false
	}
	out := make([]entity.Message, 0, len(items))
	for _, m := range items {
		out = append(out, entity.Message{Role: entity.Role(strings.ToLower(strings.TrimSpace(m.Role))), Content: m.Content})
	}
	return out, true
}
