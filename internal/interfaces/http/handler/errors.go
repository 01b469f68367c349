package handler

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"crm-rag-api/internal/application/retrieval"
	"crm-rag-api/internal/interfaces/http/dto"
	"crm-rag-api/pkg/errors"
	"crm-rag-api/pkg/logger"
)

// toAppError 应用层错误到 AppError 的映射；fallback 为上游/内部错误对外展示的文案
func toAppError(err error, fallback string) *errors.AppError {
	// 校验错误优先：上游错误可能包装了校验错误
	var ve *retrieval.ValidationError
	if stderrors.As(err, &ve) {
		return errors.Wrap(err, errors.CodeInvalidParam, ve.Error())
	}

	switch {
	case stderrors.Is(err, retrieval.ErrIndexReset):
		return errors.Wrap(err, errors.CodeResetConflict, "the collection was reset while the request was in progress")
	case stderrors.Is(err, retrieval.ErrIndexNotReady):
		return errors.Wrap(err, errors.CodeIndexNotReady, "vector index is not initialized")
	case stderrors.Is(err, retrieval.ErrVectorDisabled):
		return errors.Wrap(err, errors.CodeServiceUnavailable, "vector retrieval is not configured")
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	var ue *retrieval.UpstreamError
	if stderrors.As(err, &ue) {
		switch ue.Service {
		case retrieval.ServiceEmbedding:
			return errors.Wrap(err, errors.CodeEmbeddingFailed, fallback)
		case retrieval.ServiceGeneration:
			return errors.Wrap(err, errors.CodeGenerationFailed, fallback)
		default:
			return errors.Wrap(err, errors.CodeVectorDBError, fallback)
		}
	}
	return errors.Wrap(err, errors.CodeInternalError, fallback)
}

// respondError 记录并返回错误响应
func respondError(c *gin.Context, err error, fallback string) {
	appErr := toAppError(err, fallback)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "request failed", err,
			"path", c.FullPath(),
			"code", string(appErr.Code),
		)
	} else {
		logger.Warn(c.Request.Context(), "request rejected",
			"path", c.FullPath(),
			"code", string(appErr.Code),
			"error", err.Error(),
		)
	}
	dto.AppError(c, appErr)
}

// bindJSON 绑定请求体，失败时直接写 400/413
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		var mbe *http.MaxBytesError
		if stderrors.As(err, &mbe) {
			dto.Error(c, http.StatusRequestEntityTooLarge, errors.CodeInvalidParam, "request body too large")
			return false
		}
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}
