package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"dealscout/models"
	"dealscout/scheduler"
	"dealscout/scraper"
	"dealscout/services"

	"github.com/gorilla/mux"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
	maxBodyBytes       = 1 << 16
)

// Searcher runs synchronous searches
type Searcher interface {
	SearchAndRecommend(ctx context.Context, query string) ([]models.Product, error)
	Sources() []models.SourceInfo
	CacheStats() services.CacheStats
}

// TaskQueue runs searches in the background
type TaskQueue interface {
	SubmitTask(query string) (models.SearchTask, error)
	GetTask(taskID string) (models.SearchTask, bool)
	GetStats() map[string]interface{}
}

// SearchLogReader lists recorded searches
type SearchLogReader interface {
	Recent(ctx context.Context, limit int) ([]models.SearchLogEntry, error)
}

type Handlers struct {
	search    Searcher
	tasks     TaskQueue
	searchLog SearchLogReader
	logger    *slog.Logger
	started   time.Time
}

// NewHandlers creates the HTTP handlers. searchLog may be nil when no database is configured.
func NewHandlers(search Searcher, tasks TaskQueue, searchLog SearchLogReader, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		search:    search,
		tasks:     tasks,
		searchLog: searchLog,
		logger:    logger,
		started:   time.Now(),
	}
}

// RegisterRoutes mounts every endpoint on r
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")

	// kept for clients of the first release
	r.HandleFunc("/search", h.Search).Methods("POST")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/search", h.Search).Methods("POST")
	apiV1.HandleFunc("/search/async", h.SearchAsync).Methods("POST")
	apiV1.HandleFunc("/tasks/stats", h.GetTaskStats).Methods("GET")
	apiV1.HandleFunc("/tasks/{taskId}", h.GetTaskStatus).Methods("GET")
	apiV1.HandleFunc("/sources", h.GetSources).Methods("GET")
	apiV1.HandleFunc("/searches/recent", h.GetRecentSearches).Methods("GET")
}

// HealthCheck returns a simple health check response
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "healthy",
		"service":    "dealscout",
		"version":    "1.0.0",
		"timestamp":  time.Now(),
		"uptime":     time.Since(h.started).Round(time.Second).String(),
		"search_log": h.searchLog != nil,
		"cache":      h.search.CacheStats(),
	})
}

// Search answers a query with ranked products
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSearchRequest(w, r)
	if !ok {
		return
	}

	products, err := h.search.SearchAndRecommend(r.Context(), req.Query)
	if err != nil {
		h.writeSearchError(w, req.Query, err)
		return
	}

	writeJSON(w, http.StatusOK, products)
}

// SearchAsync queues a search and returns its task ID
func (h *Handlers) SearchAsync(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSearchRequest(w, r)
	if !ok {
		return
	}
	query := services.NormalizeQuery(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "Query is required")
		return
	}

	task, err := h.tasks.SubmitTask(req.Query)
	if err != nil {
		if errors.Is(err, scheduler.ErrQueueFull) || errors.Is(err, scheduler.ErrStopped) {
			writeError(w, http.StatusServiceUnavailable, "Search queue is unavailable, try again later")
			return
		}
		h.logger.Error("failed to submit search task", "query", req.Query, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to queue search")
		return
	}

	h.logger.Info("async search queued", "task_id", task.ID, "query", req.Query)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"task_id": task.ID,
		"status":  task.Status,
		"message": "Search queued for processing",
		"query":   task.Query,
	})
}

// GetTaskStatus returns the status of an async task
func (h *Handlers) GetTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskId"]

	task, exists := h.tasks.GetTask(taskID)
	if !exists {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// GetTaskStats returns statistics about the task manager
func (h *Handlers) GetTaskStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":     h.tasks.GetStats(),
		"timestamp": time.Now(),
	})
}

// GetSources lists the configured sources
func (h *Handlers) GetSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.search.Sources())
}

// GetRecentSearches returns the latest searches from the search log
func (h *Handlers) GetRecentSearches(w http.ResponseWriter, r *http.Request) {
	if h.searchLog == nil {
		writeError(w, http.StatusServiceUnavailable, "Search log is not enabled")
		return
	}

	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, maxRecentLimit)
	}

	entries, err := h.searchLog.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to get recent searches", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get recent searches")
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func (h *Handlers) writeSearchError(w http.ResponseWriter, query string, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, "Query is required")
	case errors.Is(err, scraper.ErrSessionUnavailable):
		h.logger.Error("search could not start", "query", query, "error", err)
		writeError(w, http.StatusInternalServerError, "Search is temporarily unavailable")
	default:
		h.logger.Error("search failed", "query", query, "error", err)
		writeError(w, http.StatusInternalServerError, "Search failed")
	}
}

func decodeSearchRequest(w http.ResponseWriter, r *http.Request) (models.SearchRequest, bool) {
	var req models.SearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return req, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
