package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/vjekoslav/cijene-api/config"
	"github.com/vjekoslav/cijene-api/internal/crawler"
	"github.com/vjekoslav/cijene-api/internal/fetch"
	"github.com/vjekoslav/cijene-api/internal/output"
	"github.com/vjekoslav/cijene-api/logger"
	"github.com/vjekoslav/cijene-api/services/cache"
	"github.com/vjekoslav/cijene-api/services/publisher"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	date := cfg.Date()
	log.Info().
		Str("environment", cfg.Environment).
		Str("date", date.Format("2006-01-02")).
		Str("output_dir", cfg.OutputDir).
		Msg("Starting crawl")

	// Cancel the run on SIGINT/SIGTERM; the chain in flight finishes
	// its current fetches and the rest are skipped.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("Shutting down")
		cancel()
	}()

	// Shared fetch-block cache: memcache when configured, otherwise
	// process-local.
	var cacheSvc cache.CacheService
	if cfg.MemcacheAddr != "" {
		cacheSvc = cache.NewMemcacheService(cfg.MemcacheAddr)
		log.Info().Str("addr", cfg.MemcacheAddr).Msg("Using memcache for fetch block markers")
	} else {
		cacheSvc = cache.NewMemoryService()
	}

	// Optional crawl-result stream for the downstream import step.
	var pub publisher.Publisher
	if cfg.RedisAddr != "" {
		redisPub := publisher.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamMaxLength)
		defer redisPub.Close()
		pub = redisPub
		log.Info().
			Str("addr", cfg.RedisAddr).
			Str("stream", cfg.RedisStream).
			Msg("Publishing crawl results to Redis stream")
	}

	registry := crawler.NewRegistry(crawler.Deps{
		NewClient: func(chain string) fetch.Client {
			return fetch.NewHTTPClient(chain, cfg.FetchTimeout, cfg.FetchRetries, cacheSvc)
		},
		Workers: cfg.StoreWorkers,
	})

	writer := output.NewWriter(cfg.OutputDir)
	orchestrator := crawler.NewOrchestrator(registry, writer, pub)

	summary := orchestrator.Run(ctx, date, cfg.CrawlChains)

	for _, r := range summary.Results {
		if r.Failed {
			log.Error().
				Str("chain", r.Chain).
				Str("error", r.Error).
				Msg("Chain failed")
			continue
		}
		log.Info().
			Str("chain", r.Chain).
			Int("stores", r.Stores).
			Int("products", r.Products).
			Int("prices", r.Prices).
			Float64("elapsed_seconds", r.ElapsedSecs).
			Str("archive", r.ArchivePath).
			Msg("Chain done")
	}

	if pub != nil {
		if err := pub.TrimStream(); err != nil {
			log.Warn().Err(err).Msg("Failed to trim result stream")
		}
	}

	if summary.Failed == len(summary.Results) && len(summary.Results) > 0 {
		log.Fatal().Msg("All chains failed")
	}
}
