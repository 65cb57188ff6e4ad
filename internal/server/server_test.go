package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/rag-search/internal/chunker"
	"github.com/bull/rag-search/internal/domain"
	"github.com/bull/rag-search/internal/embedding"
	"github.com/bull/rag-search/internal/index"
	"github.com/bull/rag-search/internal/llm"
	"github.com/bull/rag-search/internal/search"
)

type fakeClient struct {
	answer string
	err    error
}

func (f *fakeClient) Complete(context.Context, string) (string, error) {
	return f.answer, f.err
}

func newTestServer(t *testing.T, docs []domain.Document, client search.AnswerClient) *Server {
	t.Helper()
	idx := index.NewFlat(t.TempDir(), embedding.NewHash(64), chunker.New(700, 250), domain.MetricCosine, nil)
	require.NoError(t, idx.BuildFromDocuments(context.Background(), docs))
	return New(":0", search.New(idx, client, 3, nil), nil)
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestRoot(t *testing.T) {
	s := newTestServer(t, nil, &fakeClient{})
	rec := doRequest(t, s, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rag-search")
}

func TestHealth_Ready(t *testing.T) {
	docs := []domain.Document{{ID: "1", Source: "a.txt", Text: "heart disease is a heart condition"}}
	s := newTestServer(t, docs, &fakeClient{})

	rec := doRequest(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Chunks)
}

func TestHealth_NotReady(t *testing.T) {
	idx := index.NewFlat(t.TempDir(), embedding.NewHash(64), chunker.New(700, 250), domain.MetricCosine, nil)
	s := New(":0", search.New(idx, &fakeClient{}, 3, nil), nil)

	rec := doRequest(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not ready")
}

func TestSearch_ReturnsSummary(t *testing.T) {
	docs := []domain.Document{{ID: "1", Source: "a.txt", Text: "heart disease affects the cardiovascular system"}}
	s := newTestServer(t, docs, &fakeClient{answer: "Heart disease affects the heart."})

	rec := doRequest(t, s, http.MethodPost, "/rag/search", `{"query":"what is heart disease"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "what is heart disease", resp.Query)
	assert.Equal(t, "Heart disease affects the heart.", resp.Summary)
}

func TestSearch_EmptyIndexReturnsSentinel(t *testing.T) {
	s := newTestServer(t, nil, &fakeClient{answer: "should never be used"})

	rec := doRequest(t, s, http.MethodPost, "/rag/search", `{"query":"anything"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, search.NoEvidenceAnswer, resp.Summary)
}

func TestSearch_BadRequests(t *testing.T) {
	s := newTestServer(t, nil, &fakeClient{})

	rec := doRequest(t, s, http.MethodPost, "/rag/search", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/rag/search", `{"query":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch_NotBuiltIndexIs503(t *testing.T) {
	idx := index.NewFlat(t.TempDir(), embedding.NewHash(64), chunker.New(700, 250), domain.MetricCosine, nil)
	s := New(":0", search.New(idx, &fakeClient{}, 3, nil), nil)

	rec := doRequest(t, s, http.MethodPost, "/rag/search", `{"query":"q"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSearch_AnswerServiceFailureIs502(t *testing.T) {
	docs := []domain.Document{{ID: "1", Source: "a.txt", Text: "some indexed content about diabetes"}}
	s := newTestServer(t, docs, &fakeClient{err: llm.ErrAnswerService})

	rec := doRequest(t, s, http.MethodPost, "/rag/search", `{"query":"diabetes"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSearch_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, nil, &fakeClient{})
	rec := doRequest(t, s, http.MethodGet, "/rag/search", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRun_ShutsDownOnContextCancel(t *testing.T) {
	s := newTestServer(t, nil, &fakeClient{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	err := <-done
	if err != nil && !strings.Contains(err.Error(), "closed") {
		t.Fatalf("unexpected run error: %v", err)
	}
}
