package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration.
type Config struct {
	// Output configuration
	OutputDir string

	// Crawl selection
	CrawlDate   string // YYYY-MM-DD, empty means today
	CrawlChains []string

	// Fetch configuration
	FetchTimeout time.Duration
	FetchRetries int
	StoreWorkers int

	// Optional memcache for fetch block markers
	MemcacheAddr string

	// Optional Redis stream for crawl result notifications
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int64

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults.
func LoadConfig() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	maxLen, _ := strconv.ParseInt(getEnv("REDIS_STREAM_MAX_LENGTH", "1000"), 10, 64)
	timeout, _ := strconv.Atoi(getEnv("FETCH_TIMEOUT_SECONDS", "60"))
	retries, _ := strconv.Atoi(getEnv("FETCH_RETRIES", "3"))
	workers, _ := strconv.Atoi(getEnv("STORE_WORKERS", "4"))

	var chains []string
	if raw := getEnv("CRAWL_CHAINS", ""); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				chains = append(chains, strings.ToLower(c))
			}
		}
	}

	return Config{
		OutputDir:            getEnv("OUTPUT_DIR", "./output"),
		CrawlDate:            getEnv("CRAWL_DATE", ""),
		CrawlChains:          chains,
		FetchTimeout:         time.Duration(timeout) * time.Second,
		FetchRetries:         retries,
		StoreWorkers:         workers,
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "crawl-results"),
		RedisStreamMaxLength: maxLen,
		Environment:          getEnv("ENVIRONMENT", "development"),
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR must not be empty")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT_SECONDS must be positive")
	}
	if c.FetchRetries < 0 {
		return fmt.Errorf("FETCH_RETRIES must not be negative")
	}
	if c.StoreWorkers < 1 {
		return fmt.Errorf("STORE_WORKERS must be at least 1")
	}
	if c.CrawlDate != "" {
		if _, err := time.Parse("2006-01-02", c.CrawlDate); err != nil {
			return fmt.Errorf("CRAWL_DATE must be YYYY-MM-DD: %w", err)
		}
	}
	return nil
}

// Date returns the requested crawl date, defaulting to today.
func (c Config) Date() time.Time {
	if c.CrawlDate != "" {
		d, err := time.Parse("2006-01-02", c.CrawlDate)
		if err == nil {
			return d
		}
	}
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
