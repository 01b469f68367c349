package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-rag-api/internal/application/rag"
	"crm-rag-api/internal/application/retrieval"
	"crm-rag-api/internal/config"
	"crm-rag-api/internal/infrastructure/persistence/memory"
	"crm-rag-api/internal/infrastructure/source"
	"crm-rag-api/internal/interfaces/http/dto"
	"crm-rag-api/internal/interfaces/http/handler"
	"crm-rag-api/internal/testutil"
	apperrors "crm-rag-api/pkg/errors"
)

type testServer struct {
	engine  *gin.Engine
	manager *retrieval.IndexManager
	chat    *testutil.ChatModel
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Name = "crm-rag-api"
	cfg.App.Env = "test"
	cfg.Server.HTTP.MaxBodyBytes = 1 << 20
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore("crm_documents", 8)
	embedder := testutil.NewHashEmbedder(8)
	guard := retrieval.NewResetGuard()
	indexer := retrieval.NewIndexer(embedder, store, source.NewParser(0), guard, 0, 0)
	manager := retrieval.NewIndexManager(store, guard)
	chat := &testutil.ChatModel{}
	orchestrator := rag.NewOrchestrator(retrieval.NewEngine(embedder, store, guard, 0), &testutil.ChatFactory{Model: chat})

	r := New(cfg, &Handlers{
		Health: handler.NewHealthHandler(store, nil, "test"),
		Query:  handler.NewQueryHandler(orchestrator),
		Ingest: handler.NewIngestHandler(indexer),
		Admin:  handler.NewAdminHandler(manager),
	}, nil)
	return &testServer{engine: r.Engine(), manager: manager, chat: chat}
}

func (s *testServer) initialize(t *testing.T) {
	t.Helper()
	require.NoError(t, s.manager.Initialize(context.Background()))
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

const customersJSON = `[{"id":"C1","name":"Tanaka","totalSales":1200000,"visitCount":12,"notes":"VIP"},{"id":"C2","name":"Sato","totalSales":5000,"visitCount":1}]`

func TestNotReadyBeforeInitialize(t *testing.T) {
	s := newTestServer(t, testConfig())

	w := s.do(http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, apperrors.CodeIndexNotReady, decode[dto.ErrorResponse](t, w).Code)

	w = s.do(http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.do(http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestIngestQueryAndStatus(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.initialize(t)

	w := s.do(http.MethodPost, "/api/ingest", `{"source":`+customersJSON+`,"dataType":"customer"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, dto.IngestResponse{Success: true, Count: 2}, decode[dto.IngestResponse](t, w))

	csv, _ := json.Marshal("id,customerId,status,totalAmount\nQ1,C1,sent,3000\n")
	w = s.do(http.MethodPost, "/api/ingest", `{"source":`+string(csv)+`,"dataType":"quote","metadata":{"sourceFile":"q.csv"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[dto.StatusResponse](t, w)
	assert.Equal(t, "crm_documents", st.CollectionName)
	assert.Equal(t, int64(3), st.TotalDocuments)

	w = s.do(http.MethodPost, "/api/query", `{"query":"VIP customers","options":{"topK":5,"minScore":0,"types":["customer"]}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[map[string]any](t, w)
	assert.Equal(t, "ok", resp["answer"])
	sources, ok := resp["sources"].([]any)
	require.True(t, ok)
	require.Len(t, sources, 2)
	meta := sources[0].(map[string]any)["metadata"].(map[string]any)
	assert.Equal(t, "customer", meta["type"])

	w = s.do(http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestQueryNoMatchesReturnsEmptySources(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.initialize(t)

	w := s.do(http.MethodPost, "/api/query", `{"query":"anything","options":{"minScore":0.99}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"answer":"ok","sources":[],"confidence":0}`, w.Body.String())
}

func TestQueryRejectsBadInput(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.initialize(t)

	cases := map[string]struct {
		path string
		body string
	}{
		"empty query":       {"/api/query", `{"query":"  "}`},
		"malformed":         {"/api/query", `{"query":`},
		"unknown type":      {"/api/query", `{"query":"q","options":{"types":["invoice"]}}`},
		"minScore range":    {"/api/query", `{"query":"q","options":{"minScore":2}}`},
		"history not array": {"/api/query/conversation", `{"query":"q","history":"oops"}`},
		"bad role":          {"/api/query/conversation", `{"query":"q","history":[{"role":"system","content":"x"}]}`},
	}
	for name, tc := range cases {
		w := s.do(http.MethodPost, tc.path, tc.body)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
		assert.Equal(t, apperrors.CodeInvalidParam, decode[dto.ErrorResponse](t, w).Code, name)
	}
}

func TestConversation(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.initialize(t)

	w := s.do(http.MethodPost, "/api/query/conversation",
		`{"query":"and his quotes?","history":[{"role":"User","content":"who is C1?"},{"role":"assistant","content":"Tanaka."}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, s.chat.LastInput(), 4)

	w = s.do(http.MethodPost, "/api/query/conversation", `{"query":"hello"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, s.chat.LastInput(), 2)
}

func TestQueryGenerationFailure(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.initialize(t)
	s.chat.Err = errors.New("provider exploded")

	w := s.do(http.MethodPost, "/api/query", `{"query":"hello"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode[dto.ErrorResponse](t, w)
	assert.Equal(t, apperrors.CodeGenerationFailed, body.Code)
	assert.NotContains(t, body.Error, "exploded")
}

func TestBulkIngest(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.initialize(t)

	w := s.do(http.MethodPost, "/api/ingest/bulk", `{"sources":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/ingest/bulk", `{"sources":[{"source":"x","dataType":"invoice"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[dto.ErrorResponse](t, w).Error, "sources[0].dataType")

	w = s.do(http.MethodPost, "/api/ingest/bulk", `{"sources":[
		{"source":`+customersJSON+`,"dataType":"customer"},
		{"source":"[{\"id\":","dataType":"quote"},
		{"source":[{"id":"W1","customerId":"C1","workType":"paint","totalCost":8000}],"dataType":"work_history"}
	]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[dto.BulkIngestResponse](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, map[string]int{"customer": 2, "quote": 0, "work_history": 1}, resp.ByType)
}

func TestBulkIngestBlankSourceCountsAsFailure(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.initialize(t)

	w := s.do(http.MethodPost, "/api/ingest/bulk", `{"sources":[
		{"source":`+customersJSON+`,"dataType":"customer"},
		{"source":"","dataType":"quote"},
		{"source":[{"id":"W1","customerId":"C1","workType":"paint","totalCost":8000}],"dataType":"work_history"}
	]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[dto.BulkIngestResponse](t, w)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, map[string]int{"customer": 2, "quote": 0, "work_history": 1}, resp.ByType)

	w = s.do(http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(3), decode[dto.StatusResponse](t, w).TotalDocuments)

	w = s.do(http.MethodPost, "/api/ingest", `{"source":"  ","dataType":"quote"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentsAndReset(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.initialize(t)
	w := s.do(http.MethodPost, "/api/ingest", `{"source":`+customersJSON+`,"dataType":"customer"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/documents?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[dto.DocumentListResponse](t, w)
	require.Len(t, page.Documents, 1)
	assert.Equal(t, "customer_C1", page.Documents[0].ID)
	assert.Equal(t, "1", page.NextCursor)

	w = s.do(http.MethodGet, "/api/documents?limit=1&cursor="+page.NextCursor, "")
	require.Equal(t, http.StatusOK, w.Code)
	page = decode[dto.DocumentListResponse](t, w)
	require.Len(t, page.Documents, 1)
	assert.Empty(t, page.NextCursor)

	w = s.do(http.MethodGet, "/api/documents?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodGet, "/api/documents?cursor=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/reset", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[dto.ResetResponse](t, w).Success)

	w = s.do(http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[dto.StatusResponse](t, w).TotalDocuments)
}

func TestBodyTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Server.HTTP.MaxBodyBytes = 64
	s := newTestServer(t, cfg)
	s.initialize(t)

	w := s.do(http.MethodPost, "/api/query", `{"query":"`+strings.Repeat("a", 200)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRateLimitedAPI(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RateLimit.Enabled = true
	cfg.Security.RateLimit.RequestsPerSecond = 1
	cfg.Security.RateLimit.Burst = 1
	s := newTestServer(t, cfg)
	s.initialize(t)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/status", "").Code)
	w := s.do(http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, apperrors.CodeTooManyRequests, decode[dto.ErrorResponse](t, w).Code)

	// 探针不受限流影响
	for range 3 {
		assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "").Code)
	}
}
