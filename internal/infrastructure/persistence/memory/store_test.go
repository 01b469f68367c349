package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-rag-api/internal/application/retrieval"
	"crm-rag-api/internal/domain/entity"
)

func doc(id string, t entity.RecordType, vec ...float32) *retrieval.VectorDocument {
	return &retrieval.VectorDocument{ID: id, Content: id, Metadata: entity.Metadata{Type: t}, Vector: vec}
}

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore("docs", 2)

	ready, err := s.Ready(ctx)
	require.NoError(t, err)
	assert.False(t, ready)
	assert.ErrorIs(t, s.Upsert(ctx, []*retrieval.VectorDocument{doc("a", entity.RecordTypeCustomer, 1, 0)}), retrieval.ErrIndexNotReady)

	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Upsert(ctx, []*retrieval.VectorDocument{
		doc("a", entity.RecordTypeCustomer, 1, 0),
		doc("b", entity.RecordTypeQuote, 0, 1),
	}))
	require.NoError(t, s.Upsert(ctx, []*retrieval.VectorDocument{doc("a", entity.RecordTypeCustomer, 1, 1)}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, s.DeleteAll(ctx))
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	ready, _ = s.Ready(ctx)
	assert.True(t, ready)
}

func TestStoreQuery(t *testing.T) {
	ctx := context.Background()
	s := NewStore("docs", 2)
	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Upsert(ctx, []*retrieval.VectorDocument{
		doc("far", entity.RecordTypeCustomer, 0, 1),
		doc("near", entity.RecordTypeQuote, 1, 0),
		doc("mid", entity.RecordTypeCustomer, 1, 1),
	}))

	hits, err := s.Query(ctx, &retrieval.VectorQueryParams{Vector: []float32{1, 0}, TopK: 2})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].ID)
	assert.InDelta(t, 0, hits[0].Distance, 1e-9)
	assert.Equal(t, "mid", hits[1].ID)

	hits, err = s.Query(ctx, &retrieval.VectorQueryParams{
		Vector: []float32{1, 0},
		TopK:   5,
		Types:  []entity.RecordType{entity.RecordTypeCustomer},
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "mid", hits[0].ID)
	assert.Equal(t, "far", hits[1].ID)

	_, err = s.Query(ctx, &retrieval.VectorQueryParams{Vector: []float32{1}, TopK: 1})
	assert.Error(t, err)
}

func TestStoreList(t *testing.T) {
	ctx := context.Background()
	s := NewStore("docs", 1)
	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Upsert(ctx, []*retrieval.VectorDocument{
		doc("a", entity.RecordTypeCustomer, 1),
		doc("b", entity.RecordTypeCustomer, 1),
		doc("c", entity.RecordTypeCustomer, 1),
	}))

	page, err := s.List(ctx, 2, "")
	require.NoError(t, err)
	require.Len(t, page.Documents, 2)
	assert.Equal(t, "2", page.NextCursor)

	page, err = s.List(ctx, 2, page.NextCursor)
	require.NoError(t, err)
	require.Len(t, page.Documents, 1)
	assert.Equal(t, "c", page.Documents[0].ID)
	assert.Empty(t, page.NextCursor)

	_, err = s.List(ctx, 2, "nope")
	var ve *retrieval.ValidationError
	assert.ErrorAs(t, err, &ve)
}
