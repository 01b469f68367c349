package retrieval

import (
	"errors"
	"fmt"
)

var (
	// ErrVectorDisabled 表示向量检索/索引能力未配置（向量库或 Embedder 不可用）。
	ErrVectorDisabled = errors.New("vector retrieval is disabled")

	// ErrIndexNotReady 表示集合尚未初始化。
	ErrIndexNotReady = errors.New("vector index is not initialized")

	// ErrIndexReset 表示操作开始后集合已被重置。
	ErrIndexReset = errors.New("vector index was reset during the operation")
)

// ValidationError 请求参数或数据源不合法
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// NewValidationError 创建校验错误
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// UpstreamError 外部服务（embedding / generation / 向量库）调用失败
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s call failed: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// 上游服务名
const (
	ServiceEmbedding  = "embedding"
	ServiceGeneration = "generation"
	ServiceVectorDB   = "vector_db"
)

// Upstream 将外部调用错误归类为 UpstreamError，已归类的错误原样返回
func Upstream(service string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamError{Service: service, Err: err}
}
