package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"crm-rag-api/internal/application/rag"
	"crm-rag-api/internal/application/retrieval"
	apperrors "crm-rag-api/pkg/errors"
)

func TestToAppError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   apperrors.ErrorCode
	}{
		{"validation", retrieval.NewValidationError("query", "query is required"), http.StatusBadRequest, apperrors.CodeInvalidParam},
		{"wrapped validation", &rag.QueryError{Stage: rag.StateReceived, Err: retrieval.NewValidationError("q", "bad")}, http.StatusBadRequest, apperrors.CodeInvalidParam},
		{"reset", fmt.Errorf("ingest: %w", retrieval.ErrIndexReset), http.StatusConflict, apperrors.CodeResetConflict},
		{"not ready", retrieval.ErrIndexNotReady, http.StatusServiceUnavailable, apperrors.CodeIndexNotReady},
		{"disabled", retrieval.ErrVectorDisabled, http.StatusServiceUnavailable, apperrors.CodeServiceUnavailable},
		{"embedding", retrieval.Upstream(retrieval.ServiceEmbedding, errors.New("x")), http.StatusInternalServerError, apperrors.CodeEmbeddingFailed},
		{"generation", &rag.QueryError{Stage: rag.StateContextBuilt, Err: retrieval.Upstream(retrieval.ServiceGeneration, errors.New("x"))}, http.StatusInternalServerError, apperrors.CodeGenerationFailed},
		{"vector db", retrieval.Upstream(retrieval.ServiceVectorDB, errors.New("x")), http.StatusInternalServerError, apperrors.CodeVectorDBError},
		{"app error", apperrors.New(apperrors.CodeNotFound, "missing"), http.StatusNotFound, apperrors.CodeNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, apperrors.CodeInternalError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := toAppError(tc.err, "fallback")
			assert.Equal(t, tc.status, got.HTTPStatus)
			assert.Equal(t, tc.code, got.Code)
		})
	}
}

func TestToAppErrorHidesUpstreamDetail(t *testing.T) {
	got := toAppError(retrieval.Upstream(retrieval.ServiceGeneration, errors.New("api key sk-123 rejected")), "sorry")
	assert.Equal(t, "sorry", got.Message)
	assert.Empty(t, got.Detail)
}
