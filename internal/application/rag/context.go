package rag

import (
	"fmt"
	"strings"

	"crm-rag-api/internal/domain/entity"
)

// NoRelevantContext 无检索结果时传给生成步骤的固定上下文
const NoRelevantContext = "No relevant information was found in the CRM records."

// AssembleContext 将检索结果按输入顺序拼接为带编号的上下文块
func AssembleContext(results []entity.SearchResult) string {
	if len(results) == 0 {
		return NoRelevantContext
	}

	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%d] (relevance %.1f%%", i+1, r.Score*100)
		if t := r.Document.Metadata.Type; t != "" {
			sb.WriteString(", ")
			sb.WriteString(string(t))
			if id := r.Document.Metadata.ID; id != "" {
				sb.WriteString(" ")
				sb.WriteString(id)
			}
		}
		sb.WriteString(")\n")
		sb.WriteString(strings.TrimSpace(r.Document.Content))
	}
	return sb.String()
}

// ConfidenceEstimator 置信度估计策略
type ConfidenceEstimator interface {
	Estimate(results []entity.SearchResult) float64
}

// ConfidenceFunc 函数形式的 ConfidenceEstimator
type ConfidenceFunc func(results []entity.SearchResult) float64

func (f ConfidenceFunc) Estimate(results []entity.SearchResult) float64 { return f(results) }

// MeanScoreConfidence 平均相关度，上限 1；空结果为 0
var MeanScoreConfidence ConfidenceEstimator = ConfidenceFunc(meanScore)

func meanScore(results []entity.SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.Score
	}
	return min(sum/float64(len(results)), 1)
}

// FilterByScore 保留 Score >= minScore 的结果（含边界），保持原顺序
func FilterByScore(results []entity.SearchResult, minScore float64) []entity.SearchResult {
	out := make([]entity.SearchResult, 0, len(results))
	for _, r := range results {
		if r.Score >= minScore {
			out = append(out, r)
		}
	}
	return out
}
