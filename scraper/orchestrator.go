package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dealscout/models"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// OrchestratorConfig holds the per-query scraping limits
type OrchestratorConfig struct {
	NavigationTimeout time.Duration
	SourceLimit       int
	// SourceRPS paces outbound requests per source across all queries. 0 disables pacing.
	SourceRPS float64
}

// ScrapeResult is the combined output of one query across all sources
type ScrapeResult struct {
	Records []models.RawRecord
	Reports []models.SourceReport
}

// Succeeded returns the number of sources that finished without error
func (r *ScrapeResult) Succeeded() int {
	n := 0
	for i := range r.Reports {
		if !r.Reports[i].Failed() {
			n++
		}
	}
	return n
}

// Orchestrator runs every configured source concurrently inside one rendering session
type Orchestrator struct {
	renderer Renderer
	sources  []Source
	limiters map[models.SourceID]*rate.Limiter
	detector *BotDetector
	cfg      OrchestratorConfig
	logger   *slog.Logger
}

// NewOrchestrator creates an orchestrator for the given sources, in result order
func NewOrchestrator(renderer Renderer, sources []Source, cfg OrchestratorConfig, logger *slog.Logger) *Orchestrator {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.SourceLimit <= 0 {
		cfg.SourceLimit = DefaultSourceLimit
	}
	if logger == nil {
		logger = slog.Default()
	}

	limiters := make(map[models.SourceID]*rate.Limiter, len(sources))
	for _, s := range sources {
		if cfg.SourceRPS > 0 {
			limiters[s.ID] = rate.NewLimiter(rate.Limit(cfg.SourceRPS), 1)
		}
	}

	return &Orchestrator{
		renderer: renderer,
		sources:  sources,
		limiters: limiters,
		detector: NewBotDetector(),
		cfg:      cfg,
		logger:   logger,
	}
}

// Sources lists the configured sources
func (o *Orchestrator) Sources() []models.SourceInfo {
	infos := make([]models.SourceInfo, 0, len(o.sources))
	for _, s := range o.sources {
		infos = append(infos, models.SourceInfo{ID: s.ID, BaseURL: s.BaseURL})
	}
	return infos
}

// Scrape queries all sources for the query. Only a failure to acquire the
// rendering session is returned as an error; a failing source yields an
// empty contribution and a report entry.
func (o *Orchestrator) Scrape(ctx context.Context, query string) (*ScrapeResult, error) {
	session, err := o.renderer.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			o.logger.Warn("failed to close rendering session", "error", err)
		}
	}()

	perSource := make([][]models.RawRecord, len(o.sources))
	reports := make([]models.SourceReport, len(o.sources))

	// tasks never return an error so a slow or broken source cannot cancel the others
	var g errgroup.Group
	for i, src := range o.sources {
		i, src := i, src
		g.Go(func() error {
			perSource[i], reports[i] = o.scrapeSource(ctx, session, src, query)
			return nil
		})
	}
	_ = g.Wait()

	result := &ScrapeResult{Reports: reports}
	for _, records := range perSource {
		result.Records = append(result.Records, records...)
	}

	o.logger.Info("scrape finished",
		"query", query,
		"records", len(result.Records),
		"sources_ok", result.Succeeded(),
		"sources_total", len(o.sources))
	return result, nil
}

func (o *Orchestrator) scrapeSource(ctx context.Context, session Session, src Source, query string) (records []models.RawRecord, report models.SourceReport) {
	start := time.Now()
	report.Source = src.ID
	logger := o.logger.With("source", string(src.ID), "query", query)

	defer func() {
		if r := recover(); r != nil {
			logger.Warn("source scrape panicked", "panic", r)
			records = nil
			report.Count = 0
			report.Error = fmt.Sprintf("panic: %v", r)
		}
		report.Duration = time.Since(start)
	}()

	fail := func(err error) ([]models.RawRecord, models.SourceReport) {
		logger.Warn("source scrape failed", "error", err)
		report.Error = err.Error()
		return nil, report
	}

	if lim := o.limiters[src.ID]; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return fail(fmt.Errorf("rate limit wait: %w", err))
		}
	}

	searchURL := src.SearchURL(query)
	markup, err := session.Render(ctx, searchURL, o.cfg.NavigationTimeout)
	if err != nil {
		return fail(err)
	}

	if check := o.detector.Inspect(markup); check.IsBotWall {
		report.BotWall = true
		logger.Warn("bot wall detected", "kind", check.Kind, "score", check.Score, "reason", check.Reason)
	}

	records = src.Extractor.Extract(markup, searchURL, o.cfg.SourceLimit)
	report.Count = len(records)
	return records, report
}
