package milvus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocTypeFilter(t *testing.T) {
	assert.Empty(t, docTypeFilter(nil))
	assert.Empty(t, docTypeFilter([]string{" ", ""}))
	assert.Equal(t, `doc_type in ["customer"]`, docTypeFilter([]string{"customer"}))
	assert.Equal(t, `doc_type in ["quote", "work_history"]`, docTypeFilter([]string{"quote", " work_history "}))
}

func TestRepositoryNotConfigured(t *testing.T) {
	var r *Repository
	_, err := r.HasCollection(t.Context())
	assert.Error(t, err)

	_, err = NewRepository(nil, "docs", 8).Count(t.Context())
	assert.Error(t, err)
}
