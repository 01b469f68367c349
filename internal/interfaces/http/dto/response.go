// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"github.com/gin-gonic/gin"

	"crm-rag-api/pkg/errors"
)

// ErrorResponse 错误响应结构
type ErrorResponse struct {
	Error   string           `json:"error"`
	Code    errors.ErrorCode `json:"code,omitempty"`
	Detail  string           `json:"detail,omitempty"`
	TraceID string           `json:"trace_id,omitempty"`
}

// JSON 返回成功响应
func JSON[T any](c *gin.Context, status int, data T) {
	c.JSON(status, data)
}

// Error 返回错误响应
func Error(c *gin.Context, httpCode int, code errors.ErrorCode, message string) {
	c.JSON(httpCode, ErrorResponse{
		Error:   message,
		Code:    code,
		TraceID: c.GetString("trace_id"),
	})
}

// AppError 按 AppError 的状态码与错误码返回
func AppError(c *gin.Context, err *errors.AppError) {
	c.JSON(err.HTTPStatus, ErrorResponse{
		Error:   err.Message,
		Code:    err.Code,
		Detail:  err.Detail,
		TraceID: c.GetString("trace_id"),
	})
}

// BadRequest 返回 400 错误
func BadRequest(c *gin.Context, message string) {
	Error(c, 400, errors.CodeInvalidParam, message)
}
