package wire

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-rag-api/internal/config"
)

func TestProvideVectorIndexMemory(t *testing.T) {
	cfg := &config.Config{}
	cfg.Vector.Provider = "memory"
	cfg.Vector.Collection = "crm_documents"
	cfg.Vector.Dimension = 8

	index, cleanup, err := ProvideVectorIndex(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()
	require.NotNil(t, index)
	assert.Equal(t, "crm_documents", index.Name())

	require.NoError(t, index.Initialize(context.Background()))
	ready, err := index.Ready(context.Background())
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestProvideVectorIndexUnsupported(t *testing.T) {
	cfg := &config.Config{}
	cfg.Vector.Provider = "pinecone"

	_, _, err := ProvideVectorIndex(context.Background(), cfg)
	assert.Error(t, err)
}

func TestOptionalRedisProviders(t *testing.T) {
	client, cleanup, err := ProvideRedisClientOptional(context.Background(), &config.Config{})
	require.NoError(t, err)
	defer cleanup()
	assert.Nil(t, client)

	assert.Nil(t, ProvideEmbeddingCache(client))
	assert.Nil(t, ProvideRateLimiter(client))
}
