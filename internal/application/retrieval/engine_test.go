package retrieval_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-rag-api/internal/application/retrieval"
	"crm-rag-api/internal/domain/entity"
	"crm-rag-api/pkg/logger"
)

func seed(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	_, err := f.indexer.IngestBatch(ctx, []entity.Record{
		&entity.Customer{ID: "C1", Name: "Tanaka", Notes: "VIP customers list"},
		&entity.Customer{ID: "C2", Name: "Sato", Notes: "pays late"},
		&entity.Customer{ID: "C3", Name: "Suzuki"},
	}, entity.RecordTypeCustomer, nil)
	require.NoError(t, err)
	_, err = f.indexer.IngestBatch(ctx, []entity.Record{
		&entity.Quote{ID: "Q1", CustomerID: "C1", Status: entity.QuoteStatusSent, TotalAmount: 5000},
	}, entity.RecordTypeQuote, nil)
	require.NoError(t, err)
}

func TestSearchOrderedByScore(t *testing.T) {
	f := newFixture(t, true)
	seed(t, f)

	results, err := f.engine.Search(context.Background(), retrieval.SearchInput{Query: "VIP customers", TopK: 10})
	require.NoError(t, err)
	require.Len(t, results, 4)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
		require.NotNil(t, r.Distance)
	}
}

func TestSearchTopKAndTypeFilter(t *testing.T) {
	f := newFixture(t, true)
	seed(t, f)
	ctx := context.Background()

	results, err := f.engine.Search(ctx, retrieval.SearchInput{Query: "customer", TopK: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = f.engine.Search(ctx, retrieval.SearchInput{Query: "customer", TopK: 10, Types: []entity.RecordType{entity.RecordTypeQuote}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, entity.RecordTypeQuote, results[0].Document.Metadata.Type)
	assert.Equal(t, "Q1", results[0].Document.Metadata.ID)
}

func TestSearchTopKCapped(t *testing.T) {
	f := newFixture(t, true)
	seed(t, f)

	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "info", "json")
	t.Cleanup(func() { logger.Init("info", "json", "stdout") })

	engine := retrieval.NewEngine(f.embedder, f.store, f.guard, 3)
	results, err := engine.Search(context.Background(), retrieval.SearchInput{Query: "customer", TopK: 100})
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Contains(t, buf.String(), `"msg":"top_k capped"`)
	assert.Contains(t, buf.String(), `"requested_top_k":100`)
	assert.Contains(t, buf.String(), `"max_top_k":3`)
}

func TestSearchEmptyQuery(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.engine.Search(context.Background(), retrieval.SearchInput{Query: "   "})
	var ve *retrieval.ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Zero(t, f.embedder.Calls())
}

func TestSearchBeforeInitialize(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.engine.Search(context.Background(), retrieval.SearchInput{Query: "anything"})
	assert.ErrorIs(t, err, retrieval.ErrIndexNotReady)
	assert.Zero(t, f.embedder.Calls())
}

func TestScoreFromDistance(t *testing.T) {
	assert.Equal(t, 1.0, retrieval.ScoreFromDistance(0))
	assert.Equal(t, 1.0, retrieval.ScoreFromDistance(-0.01))
	assert.InDelta(t, 0.5, retrieval.ScoreFromDistance(1), 1e-9)
	assert.InDelta(t, 1.0/3, retrieval.ScoreFromDistance(2), 1e-9)
}
