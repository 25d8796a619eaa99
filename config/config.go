package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	RenderModeBrowser = "browser"
	RenderModeHTTP    = "http"
)

// Config holds all configuration for the service
type Config struct {
	Server    ServerConfig
	Scraper   ScraperConfig
	Cache     CacheConfig
	Database  DatabaseConfig
	Scheduler SchedulerConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host               string
	Port               string
	AllowedOrigins     []string
	RateLimitPerSecond float64
	RequestTimeout     time.Duration
	LogLevel           string
	LogFormat          string
}

// ScraperConfig holds rendering and extraction settings
type ScraperConfig struct {
	RenderMode        string
	ChromiumBin       string
	UserAgent         string
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	SourceLimit       int
	Sources           []string
	AmazonBaseURL     string
	FlipkartBaseURL   string
	SourceRPS         float64
}

// CacheConfig holds result cache settings
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	MaxKeys int
}

// DatabaseConfig holds the optional search log database settings
type DatabaseConfig struct {
	URL       string
	Retention time.Duration
}

// SchedulerConfig holds background job settings
type SchedulerConfig struct {
	MaintenanceSchedule string
	TaskWorkers         int
	TaskRetention       time.Duration
}

// Load reads the configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("HOST", "0.0.0.0"),
			Port:               getEnv("PORT", "8080"),
			AllowedOrigins:     getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
			RateLimitPerSecond: getEnvFloat("RATE_LIMIT_PER_SECOND", 2),
			RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 90*time.Second),
			LogLevel:           getEnv("LOG_LEVEL", "info"),
			LogFormat:          getEnv("LOG_FORMAT", "text"),
		},
		Scraper: ScraperConfig{
			RenderMode:        getEnv("RENDER_MODE", RenderModeBrowser),
			ChromiumBin:       getEnv("CHROMIUM_BIN", ""),
			UserAgent:         getEnv("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
			NavigationTimeout: getEnvDuration("NAVIGATION_TIMEOUT", 30*time.Second),
			SettleDelay:       getEnvDuration("SETTLE_DELAY", 2*time.Second),
			SourceLimit:       getEnvInt("SOURCE_LIMIT", 10),
			Sources:           getEnvList("SOURCES", []string{"amazon", "flipkart"}),
			AmazonBaseURL:     getEnv("AMAZON_BASE_URL", "https://www.amazon.in"),
			FlipkartBaseURL:   getEnv("FLIPKART_BASE_URL", "https://www.flipkart.com"),
			SourceRPS:         getEnvFloat("SOURCE_RPS", 1),
		},
		Cache: CacheConfig{
			Enabled: getEnvBool("CACHE_ENABLED", true),
			TTL:     getEnvDuration("CACHE_TTL", 10*time.Minute),
			MaxKeys: getEnvInt("CACHE_MAX_KEYS", 500),
		},
		Database: DatabaseConfig{
			URL:       getEnv("DATABASE_URL", ""),
			Retention: getEnvDuration("SEARCH_LOG_RETENTION", 30*24*time.Hour),
		},
		Scheduler: SchedulerConfig{
			MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "0 */15 * * * *"),
			TaskWorkers:         getEnvInt("TASK_WORKERS", 2),
			TaskRetention:       getEnvDuration("TASK_RETENTION", time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	switch c.Scraper.RenderMode {
	case RenderModeBrowser, RenderModeHTTP:
	default:
		return fmt.Errorf("RENDER_MODE must be %q or %q, got: %q", RenderModeBrowser, RenderModeHTTP, c.Scraper.RenderMode)
	}
	if c.Scraper.SourceLimit <= 0 {
		return fmt.Errorf("SOURCE_LIMIT must be positive, got: %d", c.Scraper.SourceLimit)
	}
	if c.Scraper.NavigationTimeout <= 0 {
		return fmt.Errorf("NAVIGATION_TIMEOUT must be positive")
	}
	if c.Scraper.SettleDelay < 0 {
		return fmt.Errorf("SETTLE_DELAY must not be negative")
	}
	if len(c.Scraper.Sources) == 0 {
		return fmt.Errorf("SOURCES must name at least one source")
	}
	for _, s := range c.Scraper.Sources {
		if s != "amazon" && s != "flipkart" {
			return fmt.Errorf("unknown source in SOURCES: %q", s)
		}
	}
	if c.Scheduler.TaskWorkers <= 0 {
		return fmt.Errorf("TASK_WORKERS must be positive, got: %d", c.Scheduler.TaskWorkers)
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive when the cache is enabled")
	}
	return nil
}

// DatabaseEnabled returns true if a search log database is configured
func (c *Config) DatabaseEnabled() bool {
	return c.Database.URL != ""
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty items
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
