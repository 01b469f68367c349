package eino

import (
	"context"
	"strings"
)

type llmCtxKey struct{ name string }

var (
	ctxKeyWorkflow = llmCtxKey{"llm_workflow"}
	ctxKeyProvider = llmCtxKey{"llm_provider"}
)

const unknownLabel = "unknown"

// WithWorkflowProvider 将工作流名与提供商写入 ctx，供 callbacks 打标签
func WithWorkflowProvider(ctx context.Context, workflow, provider string) context.Context {
	if w := strings.TrimSpace(workflow); w != "" {
		ctx = context.WithValue(ctx, ctxKeyWorkflow, w)
	}
	if p := strings.TrimSpace(provider); p != "" {
		ctx = context.WithValue(ctx, ctxKeyProvider, p)
	}
	return ctx
}

func WorkflowFromContext(ctx context.Context) string { return labelFromContext(ctx, ctxKeyWorkflow) }

func ProviderFromContext(ctx context.Context) string { return labelFromContext(ctx, ctxKeyProvider) }

func labelFromContext(ctx context.Context, key llmCtxKey) string {
	if ctx == nil {
		return unknownLabel
	}
	s, ok := ctx.Value(key).(string)
	if !ok || s == "" {
		return unknownLabel
	}
	return s
}
