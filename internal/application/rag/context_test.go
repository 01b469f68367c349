package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"crm-rag-api/internal/domain/entity"
)

func result(id string, score float64) entity.SearchResult {
	return entity.SearchResult{
		Document: entity.Document{
			ID:       "customer_" + id,
			Content:  "Customer ID: " + id,
			Metadata: entity.Metadata{Type: entity.RecordTypeCustomer, ID: id},
		},
		Score: score,
	}
}

func TestFilterByScoreInclusive(t *testing.T) {
	in := []entity.SearchResult{result("A", 0.9), result("B", 0.5), result("C", 0.49)}

	out := FilterByScore(in, 0.5)
	assert.Len(t, out, 2)
	assert.Equal(t, "A", out[0].Document.Metadata.ID)
	assert.Equal(t, "B", out[1].Document.Metadata.ID)

	assert.Len(t, FilterByScore(in, 0), 3)
	assert.Empty(t, FilterByScore(in, 1))
	assert.NotNil(t, FilterByScore(nil, 0.5))
}

func TestAssembleContext(t *testing.T) {
	assert.Equal(t, NoRelevantContext, AssembleContext(nil))

	text := AssembleContext([]entity.SearchResult{result("A", 0.9), result("B", 0.5)})
	blocks := strings.Split(text, "\n\n")
	assert.Len(t, blocks, 2)
	assert.Equal(t, "[1] (relevance 90.0%, customer A)\nCustomer ID: A", blocks[0])
	assert.True(t, strings.HasPrefix(blocks[1], "[2] (relevance 50.0%, customer B)"))
}

func TestMeanScoreConfidence(t *testing.T) {
	assert.Zero(t, MeanScoreConfidence.Estimate(nil))
	assert.InDelta(t, 0.7, MeanScoreConfidence.Estimate([]entity.SearchResult{result("A", 0.9), result("B", 0.5)}), 1e-9)
	assert.Equal(t, 1.0, MeanScoreConfidence.Estimate([]entity.SearchResult{result("A", 1.2)}))
}

func TestFilterMonotonicInThreshold(t *testing.T) {
	in := []entity.SearchResult{
		result("A", 0.95), result("B", 0.72), result("C", 0.72), result("D", 0.51), result("E", 0.34),
	}

	prevCount := len(in) + 1
	prevConfidence := -1.0
	for minScore := 0.0; minScore <= 1.0; minScore += 0.05 {
		kept := FilterByScore(in, minScore)
		confidence := MeanScoreConfidence.Estimate(kept)
		// 全部被过滤时置信度约定为 0
		if len(kept) > 0 {
			assert.GreaterOrEqual(t, confidence, prevConfidence, "minScore %.2f", minScore)
			prevConfidence = confidence
		}
		assert.LessOrEqual(t, len(kept), prevCount, "minScore %.2f", minScore)
		prevCount = len(kept)
	}
}

func TestDefaultSystemPromptCoversDomainRules(t *testing.T) {
	assert.Contains(t, DefaultSystemPrompt, "keep them exact")
	assert.Contains(t, DefaultSystemPrompt, "dates exactly")
	assert.Contains(t, DefaultSystemPrompt, "sheet-metal and paint terminology")
}

func TestBuildMessages(t *testing.T) {
	history := []entity.Message{
		{Role: entity.RoleUser, Content: "who is C1?"},
		{Role: entity.RoleAssistant, Content: "Tanaka."},
	}

	msgs := buildMessages(DefaultSystemPrompt, history, "ctx", " and his sales? ")
	assert.Len(t, msgs, 4)
	assert.Equal(t, DefaultSystemPrompt, msgs[0].Content)
	assert.Equal(t, "who is C1?", msgs[1].Content)
	assert.Equal(t, "Tanaka.", msgs[2].Content)
	assert.Equal(t, "## CRM context\nctx\n\n## Question\nand his sales?", msgs[3].Content)
}
