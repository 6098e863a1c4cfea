package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Minerva/internal/chunker"
	"Minerva/internal/config"
	"Minerva/internal/docstore"
	"Minerva/internal/ingestion"
	"Minerva/internal/llm"
	"Minerva/internal/retrieval"
	"Minerva/internal/source"
	"Minerva/internal/source/document"
	"Minerva/internal/source/schema"
	"Minerva/internal/vectorstore"
	"Minerva/pkg/logger"
)

type fakeAdapter struct {
	records []*schema.ContentRecord
}

func (f *fakeAdapter) SourceType() string                   { return "fake" }
func (f *fakeAdapter) Initialize(ctx context.Context) error { return nil }
func (f *fakeAdapter) ValidateInput(input schema.Input) bool {
	return !input.IsZero()
}
func (f *fakeAdapter) ProcessSource(ctx context.Context, input schema.Input, opts source.ProcessOptions) ([]*schema.ContentRecord, error) {
	return f.records, nil
}
func (f *fakeAdapter) Capabilities() schema.Capabilities {
	return schema.Capabilities{SourceType: "fake", Description: "test source"}
}
func (f *fakeAdapter) Cleanup() error { return nil }

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}
func (fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

type fakeVectorStore struct {
	mu      sync.Mutex
	entries map[string]*vectorstore.Entry
	hits    []*vectorstore.Hit
}

func (f *fakeVectorStore) Upsert(ctx context.Context, entries []*vectorstore.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range entries {
		f.entries[e.ID] = e
	}
	return nil
}
func (f *fakeVectorStore) Search(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]*vectorstore.Hit, error) {
	return f.hits, nil
}
func (f *fakeVectorStore) HealthCheck(ctx context.Context) error { return nil }
func (f *fakeVectorStore) Close() error                          { return nil }

type fakeLLM struct{}

func (fakeLLM) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	return "generated answer", nil
}

type memoryHistory struct {
	mu      sync.Mutex
	entries []*ingestion.HistoryEntry
}

func (m *memoryHistory) Insert(ctx context.Context, entry *ingestion.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}
func (m *memoryHistory) List(ctx context.Context, limit, offset int64) ([]*ingestion.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries, nil
}

type denyLimiter struct{}

func (denyLimiter) Allow() bool { return false }

func newTestRouter(t *testing.T, vectors *fakeVectorStore) (*gin.Engine, *memoryHistory) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger.Init("error")
	log := logger.New("api-test", "")

	registry := source.NewRegistry(log)
	require.NoError(t, registry.Register("fake", func(cfg source.Config) (source.Adapter, error) {
		return &fakeAdapter{records: []*schema.ContentRecord{{
			Content:    "some indexed content",
			SourceType: "fake",
			SourceID:   "page-1",
			Title:      "Page One",
		}}}, nil
	}))
	require.NoError(t, registry.Register(document.SourceType, document.Constructor(log)))

	ch, err := chunker.New(0)
	require.NoError(t, err)

	docs := docstore.NewInMemoryDocStore()
	history := &memoryHistory{}
	ingestor := ingestion.New(ingestion.Deps{
		Registry: registry,
		Chunker:  ch,
		Embedder: fakeEmbedder{},
		Vectors:  vectors,
		Docs:     docs,
		History:  history,
		Log:      log,
	})
	answerer := retrieval.New(fakeEmbedder{}, vectors, docs, fakeLLM{}, 5, log)

	cfg := &config.AppConfig{}
	cfg.Sources.Document.UploadDir = t.TempDir()

	server := NewServer(Deps{
		Config:   cfg,
		Registry: registry,
		Ingestor: ingestor,
		Answerer: answerer,
		History:  history,
		Checks: map[string]HealthCheck{
			"vectorstore": vectors.HealthCheck,
		},
		Log: log,
	})
	return NewRouter(server, nil), history
}

func newVectors() *fakeVectorStore {
	return &fakeVectorStore{entries: map[string]*vectorstore.Entry{}}
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIngestEndpoint(t *testing.T) {
	vectors := newVectors()
	router, history := newTestRouter(t, vectors)

	w := doJSON(router, http.MethodPost, "/api/v1/ingest", gin.H{
		"source_type": "fake",
		"input":       "anything",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var summary ingestion.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, ingestion.StatusCompleted, summary.Status)
	assert.Equal(t, 1, summary.PagesProcessed)
	assert.Equal(t, 1, summary.ChunksUploaded)
	assert.Len(t, vectors.entries, 1)
	assert.Len(t, history.entries, 1)
}

func TestIngestUnknownSource(t *testing.T) {
	router, _ := newTestRouter(t, newVectors())

	w := doJSON(router, http.MethodPost, "/api/v1/ingest", gin.H{
		"source_type": "nope",
		"input":       "x",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown source type")
}

func TestIngestMissingSourceType(t *testing.T) {
	router, _ := newTestRouter(t, newVectors())

	w := doJSON(router, http.MethodPost, "/api/v1/ingest", gin.H{"input": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestStructuredInput(t *testing.T) {
	router, _ := newTestRouter(t, newVectors())

	w := doJSON(router, http.MethodPost, "/api/v1/ingest", gin.H{
		"source_type": "fake",
		"input":       gin.H{"space_key": "ENG"},
		"max_pages":   3,
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestUploadEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, newVectors())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("uploaded document content"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var summary ingestion.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.ChunksUploaded)
}

func TestUploadMissingFile(t *testing.T) {
	router, _ := newTestRouter(t, newVectors())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/upload", strings.NewReader(""))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSourcesEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, newVectors())

	w := doJSON(router, http.MethodGet, "/api/v1/sources", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"fake"`)
	assert.Contains(t, w.Body.String(), document.SourceType)
}

func TestHistoryEndpoint(t *testing.T) {
	vectors := newVectors()
	router, _ := newTestRouter(t, vectors)

	w := doJSON(router, http.MethodGet, "/api/v1/ingest/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"history":[]}`, w.Body.String())

	doJSON(router, http.MethodPost, "/api/v1/ingest", gin.H{"source_type": "fake", "input": "x"})

	w = doJSON(router, http.MethodGet, "/api/v1/ingest/history?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"completed"`)
}

func TestSearchEndpoint(t *testing.T) {
	vectors := newVectors()
	vectors.hits = []*vectorstore.Hit{{
		ID:         "hit-1",
		Score:      0.8,
		Content:    "relevant chunk",
		SourceType: "fake",
		Title:      "Page One",
	}}
	router, _ := newTestRouter(t, vectors)

	w := doJSON(router, http.MethodPost, "/api/v1/search", gin.H{"question": "what is this?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var answer retrieval.Answer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &answer))
	assert.Equal(t, "generated answer", answer.Answer)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "Page One", answer.Sources[0].Title)
}

func TestSearchMissingQuestion(t *testing.T) {
	router, _ := newTestRouter(t, newVectors())
	w := doJSON(router, http.MethodPost, "/api/v1/search", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatResetEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, newVectors())
	w := doJSON(router, http.MethodPost, "/api/v1/chat/reset", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, newVectors())
	w := doJSON(router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)
}

func TestHealthEndpointUnhealthy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger.Init("error")
	log := logger.New("api-test", "")

	server := NewServer(Deps{
		Config: &config.AppConfig{},
		Checks: map[string]HealthCheck{
			"mongo": func(ctx context.Context) error { return fmt.Errorf("connection refused") },
		},
		Log: log,
	})
	router := NewRouter(server, nil)

	w := doJSON(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger.Init("error")
	log := logger.New("api-test", "")

	server := NewServer(Deps{Config: &config.AppConfig{}, Log: log})
	router := NewRouter(server, denyLimiter{})

	w := doJSON(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestStatusForMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{source.ErrInvalidInput, http.StatusBadRequest},
		{source.ErrUnknownSourceType, http.StatusBadRequest},
		{source.ErrAuthentication, http.StatusUnauthorized},
		{source.ErrNotFound, http.StatusNotFound},
		{source.ErrRateLimited, http.StatusTooManyRequests},
		{source.ErrConnectivity, http.StatusBadGateway},
		{fmt.Errorf("wrapped: %w", source.ErrAuthentication), http.StatusUnauthorized},
		{fmt.Errorf("anything else"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}
