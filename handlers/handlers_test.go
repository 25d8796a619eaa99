package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dealscout/models"
	"dealscout/scheduler"
	"dealscout/scraper"
	"dealscout/services"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearcher struct {
	products []models.Product
	err      error
	queries  []string
	cache    services.CacheStats
}

func (s *stubSearcher) SearchAndRecommend(ctx context.Context, query string) ([]models.Product, error) {
	s.queries = append(s.queries, query)
	if strings.TrimSpace(query) == "" {
		return nil, services.ErrInvalidQuery
	}
	return s.products, s.err
}

func (s *stubSearcher) CacheStats() services.CacheStats {
	return s.cache
}

func (s *stubSearcher) Sources() []models.SourceInfo {
	return []models.SourceInfo{
		{ID: models.SourceAmazon, BaseURL: "https://www.amazon.in"},
		{ID: models.SourceFlipkart, BaseURL: "https://www.flipkart.com"},
	}
}

type stubTasks struct {
	tasks     map[string]models.SearchTask
	submitErr error
}

func (s *stubTasks) SubmitTask(query string) (models.SearchTask, error) {
	if s.submitErr != nil {
		return models.SearchTask{}, s.submitErr
	}
	task := *models.NewSearchTask(query)
	s.tasks[task.ID] = task
	return task, nil
}

func (s *stubTasks) GetTask(id string) (models.SearchTask, bool) {
	t, ok := s.tasks[id]
	return t, ok
}

func (s *stubTasks) GetStats() map[string]interface{} {
	return map[string]interface{}{"total_tasks": len(s.tasks)}
}

type stubLog struct {
	entries []models.SearchLogEntry
	err     error
	limit   int
}

func (s *stubLog) Recent(ctx context.Context, limit int) ([]models.SearchLogEntry, error) {
	s.limit = limit
	return s.entries, s.err
}

func newTestRouter(search Searcher, tasks TaskQueue, log SearchLogReader) *mux.Router {
	h := NewHandlers(search, tasks, log, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	return rec
}

func scoredProduct(id string, score float64, tier models.Tier) models.Product {
	return models.Product{ID: id, Name: id, Price: 100, Rating: 4, RecommendationScore: &score, RecommendationTier: tier}
}

func TestSearchReturnsRankedProducts(t *testing.T) {
	search := &stubSearcher{products: []models.Product{
		scoredProduct("amazon-0", 100, models.TierExcellent),
		scoredProduct("flipkart-0", 24, models.TierWait),
	}}
	r := newTestRouter(search, &stubTasks{}, nil)

	for _, path := range []string{"/api/v1/search", "/search"} {
		rec := do(r, http.MethodPost, path, `{"query":"earbuds"}`)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var got []map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "amazon-0", got[0]["id"])
		assert.Equal(t, 100.0, got[0]["recommendationScore"])
		assert.Equal(t, "Excellent Deal! Buy Now", got[0]["recommendationTier"])
		assert.NotContains(t, got[0], "originalPrice")
	}
	assert.Equal(t, []string{"earbuds", "earbuds"}, search.queries)
}

func TestSearchEmptyResultIsOK(t *testing.T) {
	r := newTestRouter(&stubSearcher{products: []models.Product{}}, &stubTasks{}, nil)

	rec := do(r, http.MethodPost, "/api/v1/search", `{"query":"zzzz"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestSearchErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		msg    string
	}{
		{"malformed body", `{"query":`, nil, http.StatusBadRequest, "Invalid request body"},
		{"blank query", `{"query":"  "}`, nil, http.StatusBadRequest, "Query is required"},
		{"session unavailable", `{"query":"tv"}`, fmt.Errorf("search: %w", scraper.ErrSessionUnavailable), http.StatusInternalServerError, "Search is temporarily unavailable"},
		{"unexpected", `{"query":"tv"}`, errors.New("boom"), http.StatusInternalServerError, "Search failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&stubSearcher{err: tt.err}, &stubTasks{}, nil)
			rec := do(r, http.MethodPost, "/api/v1/search", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tt.msg), rec.Body.String())
		})
	}
}

func TestSearchAsyncAndTaskStatus(t *testing.T) {
	tasks := &stubTasks{tasks: map[string]models.SearchTask{}}
	r := newTestRouter(&stubSearcher{}, tasks, nil)

	rec := do(r, http.MethodPost, "/api/v1/search/async", `{"query":"monitor"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var accepted map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	assert.Equal(t, "queued", accepted["status"])
	taskID, _ := accepted["task_id"].(string)
	require.NotEmpty(t, taskID)

	rec = do(r, http.MethodGet, "/api/v1/tasks/"+taskID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var task models.SearchTask
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	assert.Equal(t, "monitor", task.Query)

	rec = do(r, http.MethodGet, "/api/v1/tasks/task_missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(r, http.MethodGet, "/api/v1/tasks/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_tasks":1`)
}

func TestSearchAsyncRejections(t *testing.T) {
	r := newTestRouter(&stubSearcher{}, &stubTasks{submitErr: scheduler.ErrQueueFull}, nil)

	rec := do(r, http.MethodPost, "/api/v1/search/async", `{"query":" "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodPost, "/api/v1/search/async", `{"query":"chair"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetSources(t *testing.T) {
	r := newTestRouter(&stubSearcher{}, &stubTasks{}, nil)

	rec := do(r, http.MethodGet, "/api/v1/sources", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"id":"amazon","base_url":"https://www.amazon.in"},
		{"id":"flipkart","base_url":"https://www.flipkart.com"}
	]`, rec.Body.String())
}

func TestGetRecentSearches(t *testing.T) {
	log := &stubLog{entries: []models.SearchLogEntry{
		{ID: 2, Query: "phone", NormalizedQuery: "phone", ResultCount: 12, CreatedAt: time.Now()},
	}}
	r := newTestRouter(&stubSearcher{}, &stubTasks{}, log)

	rec := do(r, http.MethodGet, "/api/v1/searches/recent", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultRecentLimit, log.limit)
	assert.Contains(t, rec.Body.String(), `"normalized_query":"phone"`)

	rec = do(r, http.MethodGet, "/api/v1/searches/recent?limit=500", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxRecentLimit, log.limit)

	rec = do(r, http.MethodGet, "/api/v1/searches/recent?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	log.err = errors.New("db down")
	rec = do(r, http.MethodGet, "/api/v1/searches/recent", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetRecentSearchesWithoutDatabase(t *testing.T) {
	r := newTestRouter(&stubSearcher{}, &stubTasks{}, nil)

	rec := do(r, http.MethodGet, "/api/v1/searches/recent", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	r := newTestRouter(&stubSearcher{cache: services.CacheStats{Keys: 2, Hits: 5, Misses: 3}}, &stubTasks{}, nil)

	rec := do(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["search_log"])

	cache, ok := body["cache"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 2.0, cache["keys"])
	assert.Equal(t, 5.0, cache["hits"])
	assert.Equal(t, 3.0, cache["misses"])
}
