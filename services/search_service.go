package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dealscout/models"
	"dealscout/scraper"

	cache "github.com/go-pkgz/expirable-cache"
)

// ErrInvalidQuery is returned for blank search queries
var ErrInvalidQuery = errors.New("query must not be empty")

// Scraper retrieves raw listings for a query from every configured source
type Scraper interface {
	Scrape(ctx context.Context, query string) (*scraper.ScrapeResult, error)
	Sources() []models.SourceInfo
}

// SearchLogRecorder persists search audit entries
type SearchLogRecorder interface {
	Record(ctx context.Context, entry *models.SearchLogEntry) error
}

// CacheOptions configures the result cache. A zero TTL disables caching.
type CacheOptions struct {
	TTL     time.Duration
	MaxKeys int
}

// CacheStats reports result cache counters
type CacheStats struct {
	Keys    int `json:"keys"`
	Hits    int `json:"hits"`
	Misses  int `json:"misses"`
	Added   int `json:"added"`
	Evicted int `json:"evicted"`
}

// SearchService answers product queries with ranked recommendations
type SearchService struct {
	scraper Scraper
	log     SearchLogRecorder
	results cache.Cache
	logger  *slog.Logger
}

// NewSearchService wires a search service. recorder may be nil.
func NewSearchService(s Scraper, recorder SearchLogRecorder, opts CacheOptions, logger *slog.Logger) (*SearchService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	svc := &SearchService{
		scraper: s,
		log:     recorder,
		logger:  logger,
	}

	if opts.TTL > 0 {
		cacheOpts := []cache.Option{cache.TTL(opts.TTL)}
		if opts.MaxKeys > 0 {
			cacheOpts = append(cacheOpts, cache.MaxKeys(opts.MaxKeys))
		}
		c, err := cache.NewCache(cacheOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create result cache: %w", err)
		}
		svc.results = c
	}
	return svc, nil
}

// NormalizeQuery trims, lowercases and collapses whitespace in a query
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

// SearchAndRecommend scrapes every source for the query and returns the
// combined products ranked by recommendation score. Failing sources only
// shrink the result; the returned error is non-nil when the query is blank
// or the scrape could not start at all.
func (s *SearchService) SearchAndRecommend(ctx context.Context, query string) ([]models.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrInvalidQuery
	}

	start := time.Now()
	key := NormalizeQuery(query)

	if cached, ok := s.cached(key); ok {
		s.logger.Info("search served from cache", "query", query, "results", len(cached))
		s.record(ctx, &models.SearchLogEntry{
			Query:           query,
			NormalizedQuery: key,
			ResultCount:     len(cached),
			DurationMS:      time.Since(start).Milliseconds(),
			CacheHit:        true,
		})
		return cached, nil
	}

	result, err := s.scraper.Scrape(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	ranked := Score(Normalize(result.Records))

	s.logger.Info("search completed",
		"query", query,
		"results", len(ranked),
		"duration", time.Since(start))

	s.record(ctx, &models.SearchLogEntry{
		Query:           query,
		NormalizedQuery: key,
		ResultCount:     len(ranked),
		DurationMS:      time.Since(start).Milliseconds(),
		Sources:         result.Reports,
	})

	// a run where every source failed is not worth remembering
	if s.results != nil && result.Succeeded() > 0 {
		s.results.Set(key, copyProducts(ranked), 0)
	}
	return ranked, nil
}

// Sources lists the configured sources
func (s *SearchService) Sources() []models.SourceInfo {
	return s.scraper.Sources()
}

// DeleteExpired drops expired cache entries
func (s *SearchService) DeleteExpired() {
	if s.results != nil {
		s.results.DeleteExpired()
	}
}

// purgeCache drops every cached result
func (s *SearchService) purgeCache() {
	if s.results != nil {
		s.results.Purge()
	}
}

// CacheStats returns the result cache counters
func (s *SearchService) CacheStats() CacheStats {
	if s.results == nil {
		return CacheStats{}
	}
	st := s.results.Stat()
	return CacheStats{
		Keys:    s.results.Len(),
		Hits:    st.Hits,
		Misses:  st.Misses,
		Added:   st.Added,
		Evicted: st.Evicted,
	}
}

func (s *SearchService) cached(key string) ([]models.Product, bool) {
	if s.results == nil {
		return nil, false
	}
	v, ok := s.results.Get(key)
	if !ok {
		return nil, false
	}
	products, ok := v.([]models.Product)
	if !ok {
		return nil, false
	}
	return copyProducts(products), true
}

// record writes the search log entry. Failures are logged and otherwise ignored.
func (s *SearchService) record(ctx context.Context, entry *models.SearchLogEntry) {
	if s.log == nil {
		return
	}
	if err := s.log.Record(ctx, entry); err != nil {
		s.logger.Warn("failed to record search", "query", entry.Query, "error", err)
	}
}

// copyProducts clones the slice and the values behind its pointer fields
func copyProducts(products []models.Product) []models.Product {
	out := make([]models.Product, len(products))
	for i, p := range products {
		p.OriginalPrice = clonePtr(p.OriginalPrice)
		p.Discount = clonePtr(p.Discount)
		p.RecommendationScore = clonePtr(p.RecommendationScore)
		out[i] = p
	}
	return out
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
