// Package rag 实现检索增强问答：检索、阈值过滤、上下文组装、生成。
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"crm-rag-api/internal/application/retrieval"
	"crm-rag-api/internal/domain/entity"
	einoobs "crm-rag-api/internal/observability/eino"
	"crm-rag-api/pkg/logger"
	"crm-rag-api/pkg/metrics"
)

const (
	// DefaultMinScore 默认相关度阈值
	DefaultMinScore = 0.5

	// NoAnswerMessage 模型未返回任何文本时的答复
	NoAnswerMessage = "Sorry, I could not generate an answer to your question."

	workflowQuery        = "rag_query"
	workflowConversation = "rag_conversation"

	maxQueryRunes = 4000
)

// State 问答流水线状态
type State string

const (
	StateReceived     State = "RECEIVED"
	StateRetrieved    State = "RETRIEVED"
	StateFiltered     State = "FILTERED"
	StateContextBuilt State = "CONTEXT_BUILT"
	StateGenerated    State = "GENERATED"
	StateResponded    State = "RESPONDED"
	StateFailed       State = "FAILED"
)

// Searcher 检索依赖（port）
type Searcher interface {
	Search(ctx context.Context, in retrieval.SearchInput) ([]entity.SearchResult, error)
}

// ChatModelFactory 生成模型依赖（port）
type ChatModelFactory interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
}

// QueryOptions 请求级检索参数，零值字段取默认
type QueryOptions struct {
	TopK     int
	MinScore *float64
	Types    []entity.RecordType
}

// QueryInput 问答输入
type QueryInput struct {
	Query   string
	Options *QueryOptions
	// History 为调用方持有的对话历史，原样传给模型
	History []entity.Message
}

// Source 答复引用的文档
type Source struct {
	Content  string
	Metadata entity.Metadata
	Score    float64
}

// Answer 问答结果
type Answer struct {
	Answer     string
	Sources    []Source
	Confidence float64
}

// QueryError 流水线失败，Stage 为失败前所处状态
type QueryError struct {
	Stage State
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("rag query failed at %s: %v", e.Stage, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Orchestrator 问答编排
type Orchestrator struct {
	searcher     Searcher
	chat         ChatModelFactory
	provider     string
	confidence   ConfidenceEstimator
	systemPrompt string
}

// Option 编排器可选配置
type Option func(*Orchestrator)

// WithConfidence 替换置信度策略
func WithConfidence(c ConfidenceEstimator) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.confidence = c
		}
	}
}

// WithSystemPrompt 覆盖系统人设
func WithSystemPrompt(p string) Option {
	return func(o *Orchestrator) {
		if s := strings.TrimSpace(p); s != "" {
			o.systemPrompt = s
		}
	}
}

// WithProvider 指定 LLM 提供商，为空使用工厂默认
func WithProvider(name string) Option {
	return func(o *Orchestrator) { o.provider = strings.TrimSpace(name) }
}

func NewOrchestrator(searcher Searcher, chat ChatModelFactory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		searcher:     searcher,
		chat:         chat,
		confidence:   MeanScoreConfidence,
		systemPrompt: DefaultSystemPrompt,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Query 单轮问答
func (o *Orchestrator) Query(ctx context.Context, in QueryInput) (*Answer, error) {
	in.History = nil
	return o.run(ctx, workflowQuery, in)
}

// QueryWithHistory 多轮问答
func (o *Orchestrator) QueryWithHistory(ctx context.Context, in QueryInput) (*Answer, error) {
	return o.run(ctx, workflowConversation, in)
}

func (o *Orchestrator) run(ctx context.Context, kind string, in QueryInput) (ans *Answer, err error) {
	start := time.Now()
	state := StateReceived
	defer func() {
		status := string(StateResponded)
		if err != nil {
			status = string(StateFailed)
		}
		metrics.QueryTotal.WithLabelValues(kind, status).Inc()
		metrics.QueryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()
	fail := func(e error) (*Answer, error) {
		logger.Error(ctx, "rag query failed", e, "kind", kind, "stage", string(state))
		return nil, &QueryError{Stage: state, Err: e}
	}

	topK, minScore, err := resolveOptions(in)
	if err != nil {
		return fail(err)
	}
	if o == nil || o.searcher == nil || o.chat == nil {
		return fail(retrieval.ErrVectorDisabled)
	}

	// RECEIVED -> RETRIEVED
	var types []entity.RecordType
	if in.Options != nil {
		types = in.Options.Types
	}
	results, err := o.searcher.Search(ctx, retrieval.SearchInput{Query: in.Query, TopK: topK, Types: types})
	if err != nil {
		return fail(err)
	}
	state = StateRetrieved

	// RETRIEVED -> FILTERED
	kept := FilterByScore(results, minScore)
	state = StateFiltered

	// FILTERED -> CONTEXT_BUILT
	contextText := AssembleContext(kept)
	confidence := o.confidence.Estimate(kept)
	msgs := buildMessages(o.systemPrompt, in.History, contextText, in.Query)
	state = StateContextBuilt

	// CONTEXT_BUILT -> GENERATED
	answer, err := o.generate(ctx, kind, msgs)
	if err != nil {
		return fail(err)
	}
	state = StateGenerated

	// GENERATED -> RESPONDED
	sources := make([]Source, 0, len(kept))
	for _, r := range kept {
		sources = append(sources, Source{Content: r.Document.Content, Metadata: r.Document.Metadata, Score: r.Score})
	}
	state = StateResponded

	metrics.QueryConfidence.Observe(confidence)
	metrics.QuerySources.Observe(float64(len(sources)))
	logger.Info(ctx, "rag query completed",
		"kind", kind,
		"top_k", topK,
		"min_score", minScore,
		"retrieved", len(results),
		"results", len(sources),
		"confidence", confidence,
		"history", len(in.History),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &Answer{Answer: answer, Sources: sources, Confidence: confidence}, nil
}

func resolveOptions(in QueryInput) (int, float64, error) {
	q := strings.TrimSpace(in.Query)
	if q == "" {
		return 0, 0, retrieval.NewValidationError("query", "query is required")
	}
	if utf8.RuneCountInString(q) > maxQueryRunes {
		return 0, 0, retrieval.NewValidationError("query", fmt.Sprintf("query exceeds %d characters", maxQueryRunes))
	}
	for i, h := range in.History {
		if !h.Role.Valid() {
			return 0, 0, retrieval.NewValidationError(fmt.Sprintf("history[%d].role", i), "role must be user or assistant")
		}
	}

	topK := retrieval.DefaultTopK
	minScore := DefaultMinScore
	if in.Options != nil {
		if in.Options.TopK > 0 {
			topK = in.Options.TopK
		}
		if in.Options.MinScore != nil {
			minScore = *in.Options.MinScore
			if minScore < 0 || minScore > 1 {
				return 0, 0, retrieval.NewValidationError("options.minScore", "minScore must be within [0, 1]")
			}
		}
	}
	return topK, minScore, nil
}

func (o *Orchestrator) generate(ctx context.Context, workflow string, msgs []*schema.Message) (string, error) {
	ctx = einoobs.WithWorkflowProvider(ctx, workflow, o.provider)
	cm, err := o.chat.Get(ctx, o.provider)
	if err != nil {
		return "", retrieval.Upstream(retrieval.ServiceGeneration, err)
	}

	ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      workflow,
		Type:      "ChatModel",
		Component: components.ComponentOfChatModel,
	})
	out, err := cm.Generate(ctx, msgs)
	if err != nil {
		return "", retrieval.Upstream(retrieval.ServiceGeneration, err)
	}
	if text := firstText(out); text != "" {
		return text, nil
	}
	return NoAnswerMessage, nil
}
