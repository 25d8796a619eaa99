package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealscout/config"
	"dealscout/database"
	"dealscout/handlers"
	"dealscout/middleware"
	"dealscout/models"
	"dealscout/repository"
	"dealscout/scheduler"
	"dealscout/scraper"
	"dealscout/services"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load environment variables
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Server)
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Debug("no .env file found, using environment variables")
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Search log is optional
	var searchLog *repository.SearchLogRepository
	if cfg.DatabaseEnabled() {
		if err := database.InitDatabase(ctx, cfg.Database.URL); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer database.CloseDatabase()

		if err := database.CreateTables(ctx, database.DB); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
		searchLog = repository.NewSearchLogRepository(database.DB)
		logger.Info("search log enabled")
	}

	sources, err := buildSources(cfg.Scraper, logger)
	if err != nil {
		return err
	}

	orchestrator := scraper.NewOrchestrator(newRenderer(cfg.Scraper, logger), sources, scraper.OrchestratorConfig{
		NavigationTimeout: cfg.Scraper.NavigationTimeout,
		SourceLimit:       cfg.Scraper.SourceLimit,
		SourceRPS:         cfg.Scraper.SourceRPS,
	}, logger)

	cacheOpts := services.CacheOptions{MaxKeys: cfg.Cache.MaxKeys}
	if cfg.Cache.Enabled {
		cacheOpts.TTL = cfg.Cache.TTL
	}

	// a nil *SearchLogRepository must not become a non-nil interface
	var recorder services.SearchLogRecorder
	var reader handlers.SearchLogReader
	var pruner scheduler.SearchLogPruner
	if searchLog != nil {
		recorder, reader, pruner = searchLog, searchLog, searchLog
	}

	searchService, err := services.NewSearchService(orchestrator, recorder, cacheOpts, logger)
	if err != nil {
		return err
	}

	taskManager := scheduler.NewTaskManager(searchService.SearchAndRecommend, scheduler.TaskManagerConfig{
		Workers:     cfg.Scheduler.TaskWorkers,
		TaskTimeout: cfg.Server.RequestTimeout,
	}, logger)
	defer taskManager.Stop()

	maintenance := scheduler.NewMaintenance(searchService, pruner, taskManager, scheduler.MaintenanceConfig{
		Schedule:      cfg.Scheduler.MaintenanceSchedule,
		LogRetention:  cfg.Database.Retention,
		TaskRetention: cfg.Scheduler.TaskRetention,
	}, logger)
	if err := maintenance.Start(); err != nil {
		return err
	}
	defer maintenance.Stop()

	h := handlers.NewHandlers(searchService, taskManager, reader, logger)

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(middleware.LoggingMiddleware(logger))
	r.Use(middleware.RateLimitMiddleware(cfg.Server.RateLimitPerSecond))
	h.RegisterRoutes(r)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           http.TimeoutHandler(c.Handler(r), cfg.Server.RequestTimeout, `{"error":"Request timed out"}`),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"addr", srv.Addr,
			"render_mode", cfg.Scraper.RenderMode,
			"sources", cfg.Scraper.Sources)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildSources(cfg config.ScraperConfig, logger *slog.Logger) ([]scraper.Source, error) {
	baseURLs := map[models.SourceID]string{
		models.SourceAmazon:   cfg.AmazonBaseURL,
		models.SourceFlipkart: cfg.FlipkartBaseURL,
	}

	sources := make([]scraper.Source, 0, len(cfg.Sources))
	for _, name := range cfg.Sources {
		src, err := scraper.NewSource(name, baseURLs[models.SourceID(name)], logger)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func newRenderer(cfg config.ScraperConfig, logger *slog.Logger) scraper.Renderer {
	if cfg.RenderMode == config.RenderModeHTTP {
		return scraper.NewHTTPRenderer(scraper.HTTPRendererConfig{
			UserAgent: cfg.UserAgent,
			Logger:    logger,
		})
	}
	return scraper.NewBrowserRenderer(scraper.BrowserRendererConfig{
		Bin:         cfg.ChromiumBin,
		UserAgent:   cfg.UserAgent,
		SettleDelay: cfg.SettleDelay,
		Logger:      logger,
	})
}

func newLogger(cfg config.ServerConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
