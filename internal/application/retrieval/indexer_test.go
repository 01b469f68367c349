package retrieval_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-rag-api/internal/application/retrieval"
	"crm-rag-api/internal/domain/entity"
	"crm-rag-api/internal/infrastructure/persistence/memory"
	"crm-rag-api/internal/infrastructure/source"
	"crm-rag-api/internal/testutil"
)

const testDim = 8

type fixture struct {
	store    *memory.Store
	embedder *testutil.HashEmbedder
	guard    *retrieval.ResetGuard
	indexer  *retrieval.Indexer
	engine   *retrieval.Engine
	manager  *retrieval.IndexManager
}

func newFixture(t *testing.T, initialize bool) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.NewStore("crm_documents", testDim),
		embedder: testutil.NewHashEmbedder(testDim),
		guard:    retrieval.NewResetGuard(),
	}
	f.indexer = retrieval.NewIndexer(f.embedder, f.store, source.NewParser(0), f.guard, 2, 2)
	f.engine = retrieval.NewEngine(f.embedder, f.store, f.guard, 10)
	f.manager = retrieval.NewIndexManager(f.store, f.guard)
	if initialize {
		require.NoError(t, f.manager.Initialize(context.Background()))
	}
	return f
}

func TestIngestOneIsIdempotent(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	rec := &entity.Customer{ID: "C1", Name: "Tanaka", TotalSales: 120000, VisitCount: 3}

	for range 2 {
		n, err := f.indexer.IngestOne(ctx, rec, entity.RecordTypeCustomer, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}

	status, err := f.manager.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.TotalDocuments)
	assert.Equal(t, "crm_documents", status.CollectionName)
}

func TestIngestBatchSpansEmbeddingBatches(t *testing.T) {
	f := newFixture(t, true)
	records := []entity.Record{
		&entity.Customer{ID: "C1", Name: "A"},
		&entity.Customer{ID: "C2", Name: "B"},
		&entity.Customer{ID: "C3", Name: "C"},
		&entity.Customer{ID: "C2", Name: "B2"},
	}

	n, err := f.indexer.IngestBatch(context.Background(), records, entity.RecordTypeCustomer, map[string]any{"sourceFile": "c.csv"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	page, err := f.manager.List(context.Background(), 10, "")
	require.NoError(t, err)
	require.Len(t, page.Documents, 3)
	assert.Equal(t, "customer_C2", page.Documents[1].ID)
	assert.Contains(t, page.Documents[1].Content, "Name: B2")
	v, ok := page.Documents[0].Metadata.Get("sourceFile")
	require.True(t, ok)
	assert.Equal(t, "c.csv", v)
}

func TestIngestMultiSourceSkipsFailedSource(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	summary := f.indexer.IngestMultiSource(ctx, []retrieval.IngestSource{
		{Type: entity.RecordTypeCustomer, Source: `[{"id":"C1","name":"Tanaka"},{"id":"C2","name":"Sato"}]`},
		{Type: entity.RecordTypeQuote, Source: `[{"id":"Q1",`},
		{Type: entity.RecordTypeWorkHistory, Source: "id,customerId,workType,totalCost\nW1,C1,paint,8000\n"},
	})

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.ByType[entity.RecordTypeCustomer])
	assert.Equal(t, 0, summary.ByType[entity.RecordTypeQuote])
	assert.Equal(t, 1, summary.ByType[entity.RecordTypeWorkHistory])

	n, err := f.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestIngestEmbeddingFailureWritesNothing(t *testing.T) {
	f := newFixture(t, true)
	f.embedder.Err = errors.New("provider down")

	_, err := f.indexer.IngestBatch(context.Background(), []entity.Record{
		&entity.Customer{ID: "C1"}, &entity.Customer{ID: "C2"}, &entity.Customer{ID: "C3"},
	}, entity.RecordTypeCustomer, nil)

	var ue *retrieval.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, retrieval.ServiceEmbedding, ue.Service)

	n, err := f.store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIngestBeforeInitialize(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.indexer.IngestOne(context.Background(), &entity.Customer{ID: "C1"}, entity.RecordTypeCustomer, nil)
	assert.ErrorIs(t, err, retrieval.ErrIndexNotReady)
	assert.Zero(t, f.embedder.Calls())
}

func TestIngestTypeMismatch(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.indexer.IngestOne(context.Background(), &entity.Quote{ID: "Q1"}, entity.RecordTypeCustomer, nil)
	var ve *retrieval.ValidationError
	assert.ErrorAs(t, err, &ve)
}

// resettingEmbedder 在向量化期间触发一次重置
type resettingEmbedder struct {
	inner embedding.Embedder
	reset func()
}

func (e *resettingEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if e.reset != nil {
		e.reset()
		e.reset = nil
	}
	return e.inner.EmbedStrings(ctx, texts, opts...)
}

func TestIngestRejectedAfterConcurrentReset(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore("crm_documents", testDim)
	guard := retrieval.NewResetGuard()
	manager := retrieval.NewIndexManager(store, guard)
	require.NoError(t, manager.Initialize(ctx))

	emb := &resettingEmbedder{
		inner: testutil.NewHashEmbedder(testDim),
		reset: func() { assert.NoError(t, manager.Reset(ctx)) },
	}
	indexer := retrieval.NewIndexer(emb, store, source.NewParser(0), guard, 0, 0)

	_, err := indexer.IngestOne(ctx, &entity.Customer{ID: "C1"}, entity.RecordTypeCustomer, nil)
	assert.ErrorIs(t, err, retrieval.ErrIndexReset)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestResetEmptiesIndex(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	_, err := f.indexer.IngestOne(ctx, &entity.Customer{ID: "C1"}, entity.RecordTypeCustomer, nil)
	require.NoError(t, err)

	require.NoError(t, f.manager.Reset(ctx))

	status, err := f.manager.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.TotalDocuments)
}

func TestStatusBeforeInitialize(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.manager.Status(context.Background())
	assert.ErrorIs(t, err, retrieval.ErrIndexNotReady)
}
