package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("CRM_TEST_HOST", "db.internal")

	assert.Equal(t, "host: db.internal", expandEnv("host: ${CRM_TEST_HOST:localhost}"))
	assert.Equal(t, "port: 6379", expandEnv("port: ${CRM_TEST_UNSET_PORT:6379}"))
	assert.Equal(t, "key: ", expandEnv("key: ${CRM_TEST_UNSET_KEY:}"))
	assert.Equal(t, "raw: ${CRM_TEST_UNSET_RAW}", expandEnv("raw: ${CRM_TEST_UNSET_RAW}"))
}

func TestLoadFrom_DefaultsAndEnvFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
app:
  name: crm-rag-api
vector:
  provider: milvus
  collection: ${CRM_TEST_COLLECTION:crm_documents}
  dimension: 1536
`)
	writeConfig(t, dir, "config.staging.yaml", `
vector:
  provider: memory
  dimension: 8
`)
	t.Setenv("APP_ENV", "staging")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Vector.Provider)
	assert.Equal(t, 8, cfg.Vector.Dimension)
	assert.Equal(t, "crm_documents", cfg.Vector.Collection)
	assert.Equal(t, 50, cfg.RAG.MaxTopK)
	assert.Equal(t, 8080, cfg.Server.HTTP.Port)
	assert.Equal(t, 10*time.Minute, cfg.Embedding.CacheTTL)
	assert.False(t, cfg.Cache.Redis.Enabled)
}

func TestLoadFrom_PlaceholderFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
vector:
  provider: memory
  collection: ${CRM_TEST_COLLECTION:crm_documents}
  dimension: 4
`)
	t.Setenv("APP_ENV", "none")
	t.Setenv("CRM_TEST_COLLECTION", "crm_staging")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, "crm_staging", cfg.Vector.Collection)
}

func TestLoadFrom_MissingBaseFile(t *testing.T) {
	_, err := LoadFrom(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config.yaml")
}

func TestValidate(t *testing.T) {
	valid := Config{
		Vector: VectorConfig{Provider: "qdrant", Collection: "crm", Dimension: 8},
		RAG:    RAGConfig{MaxTopK: 50},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"unknown provider", func(c *Config) { c.Vector.Provider = "faiss" }, "vector.provider"},
		{"empty collection", func(c *Config) { c.Vector.Collection = " " }, "vector.collection"},
		{"zero dimension", func(c *Config) { c.Vector.Dimension = 0 }, "vector.dimension"},
		{"zero max top k", func(c *Config) { c.RAG.MaxTopK = 0 }, "rag.max_top_k"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
