package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"crm-rag-api/internal/application/retrieval"
	"crm-rag-api/internal/infrastructure/persistence/redis"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	index   retrieval.VectorIndex
	redis   *redis.Client
	version string
}

// NewHealthHandler 创建健康检查处理器，redis 可为 nil
func NewHealthHandler(index retrieval.VectorIndex, redisClient *redis.Client, version string) *HealthHandler {
	return &HealthHandler{
		index:   index,
		redis:   redisClient,
		version: version,
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

type readinessResponse struct {
	Status string                     `json:"status"`
	Checks map[string]*readinessCheck `json:"checks,omitempty"`
}

// Health 健康检查接口
// @Summary 健康检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: h.version})
}

// Ready 就绪检查接口：向量索引必需，Redis 可选（降级不影响就绪）
// @Summary 就绪检查
// @Tags System
// @Produce json
// @Success 200 {object} readinessResponse
// @Failure 503 {object} readinessResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]*readinessCheck{
		"vector_index": {Status: "unknown"},
		"redis":        {Status: "disabled"},
	}
	ready := true

	if h.index == nil {
		checks["vector_index"].Status = "missing"
		checks["vector_index"].Error = "vector index not configured"
		ready = false
	} else {
		start := time.Now()
		ok, err := h.index.Ready(ctx)
		checks["vector_index"].LatencyMs = time.Since(start).Milliseconds()
		switch {
		case err != nil:
			checks["vector_index"].Status = "error"
			checks["vector_index"].Error = err.Error()
			ready = false
		case !ok:
			checks["vector_index"].Status = "not_initialized"
			ready = false
		default:
			checks["vector_index"].Status = "ok"
		}
	}

	if h.redis != nil {
		start := time.Now()
		err := h.redis.HealthCheck(ctx)
		checks["redis"] = &readinessCheck{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
		if err != nil {
			checks["redis"].Status = "degraded"
			checks["redis"].Error = err.Error()
		}
	}

	resp := readinessResponse{Status: "ok", Checks: checks}
	if !ready {
		resp.Status = "not_ready"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Live 存活检查接口
// @Summary 存活检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
