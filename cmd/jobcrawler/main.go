// Package main wires together the job crawler service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/entrylevelhq/jobcrawler/internal/api"
	"github.com/entrylevelhq/jobcrawler/internal/clock/system"
	"github.com/entrylevelhq/jobcrawler/internal/config"
	"github.com/entrylevelhq/jobcrawler/internal/digest"
	"github.com/entrylevelhq/jobcrawler/internal/enrich"
	"github.com/entrylevelhq/jobcrawler/internal/jobs"
	"github.com/entrylevelhq/jobcrawler/internal/logging"
	"github.com/entrylevelhq/jobcrawler/internal/pipeline"
	"github.com/entrylevelhq/jobcrawler/internal/prefilter"
	pubsubpublisher "github.com/entrylevelhq/jobcrawler/internal/publisher/pubsub"
	"github.com/entrylevelhq/jobcrawler/internal/ratelimit"
	"github.com/entrylevelhq/jobcrawler/internal/scraper"
	"github.com/entrylevelhq/jobcrawler/internal/storage/gcs"
	memorystorage "github.com/entrylevelhq/jobcrawler/internal/storage/memory"
	"github.com/entrylevelhq/jobcrawler/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()

	var repo jobs.Repository
	if cfg.DB.DSN != "" {
		poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN)
		if err != nil {
			logger.Fatal("parse db dsn failed", zap.Error(err))
		}
		poolCfg.MaxConns = cfg.DB.MaxConns
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			logger.Fatal("connect to db failed", zap.Error(err))
		}
		store := postgres.NewJobStore(pool, logger.Named("storage"))
		defer store.Close()
		repo = store
	} else {
		logger.Warn("no db dsn configured, using in-memory storage")
		repo = memorystorage.NewJobStore(clock)
	}

	var blobs jobs.BlobStore
	switch cfg.Storage.Provider {
	case "gcs":
		store, err := gcs.New(ctx, cfg.Storage.Bucket, cfg.Storage.Prefix)
		if err != nil {
			logger.Fatal("gcs init failed", zap.Error(err))
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				logger.Warn("gcs close failed", zap.Error(closeErr))
			}
		}()
		blobs = store
	case "memory":
		blobs = memorystorage.NewBlobStore()
	default:
		// Raw pages are not archived.
	}

	var publisher jobs.Publisher
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.Topic != "" {
		pub, err := pubsubpublisher.New(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("pubsub init failed", zap.Error(err))
		}
		defer func() {
			if closeErr := pub.Close(); closeErr != nil {
				logger.Warn("pubsub close failed", zap.Error(closeErr))
			}
		}()
		publisher = pub
	}

	if cfg.AI.APIKey == "" {
		logger.Fatal("ai.api_key must be set")
	}
	classifier, err := enrich.NewGeminiClassifier(ctx, cfg.AI.APIKey, cfg.AI.Model)
	if err != nil {
		logger.Fatal("gemini init failed", zap.Error(err))
	}
	defer func() {
		if closeErr := classifier.Close(); closeErr != nil {
			logger.Warn("gemini close failed", zap.Error(closeErr))
		}
	}()

	limiter := ratelimit.New(cfg.AI.RequestsPerMinute, time.Minute)
	analyzer := enrich.NewAnalyzer(classifier, limiter, logger.Named("enrich"))

	client := scraper.NewClient(scraper.ClientConfig{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.RequestTimeout(),
		Delay:     cfg.RequestDelay(),
	})
	scraperLogger := logger.Named("scraper")
	factory := func(source jobs.Source) (jobs.Scraper, error) {
		return scraper.ForSource(source, client, cfg.Crawler.MaxPages, scraperLogger)
	}

	runner := pipeline.NewRunner(pipeline.RunnerConfig{
		Repo:       repo,
		Publisher:  publisher,
		Clock:      clock,
		Logger:     logger.Named("runner"),
		NewScraper: factory,
		Topic:      cfg.PubSub.Topic,
		Pipeline: pipeline.Config{
			Matcher:           prefilter.New(),
			Analyzer:          analyzer,
			Blobs:             blobs,
			FetchConcurrency:  cfg.Crawler.MaxConcurrentFetches,
			EnrichConcurrency: cfg.AI.MaxConcurrent,
		},
	})

	scheduler := cron.New()
	scheduleJobs(ctx, scheduler, cfg, runner, repo, logger)
	scheduler.Start()
	defer scheduler.Stop()

	apiServer := api.NewServer(ctx, runner, repo, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func scheduleJobs(ctx context.Context, scheduler *cron.Cron, cfg config.Config, runner *pipeline.Runner, repo jobs.Repository, logger *zap.Logger) {
	if expr := cfg.Schedule.Crawl; expr != "" {
		mustSchedule(scheduler, expr, "crawl", logger, func() {
			if err := runner.RunAllAsync(ctx); err != nil {
				logger.Warn("scheduled crawl skipped", zap.Error(err))
			}
		})
	}
	if expr := cfg.Schedule.Cleanup; expr != "" {
		mustSchedule(scheduler, expr, "cleanup", logger, func() {
			if _, err := runner.Cleanup(ctx, cfg.Retention.Days); err != nil {
				logger.Error("scheduled cleanup failed", zap.Error(err))
			}
		})
	}
	if expr := cfg.Schedule.Digest; expr != "" {
		mustSchedule(scheduler, expr, "digest", logger, func() {
			text, err := digest.FromRepository(ctx, repo, 24)
			if err != nil {
				logger.Error("scheduled digest failed", zap.Error(err))
				return
			}
			logger.Info("daily digest", zap.String("digest", text))
		})
	}
}

func mustSchedule(scheduler *cron.Cron, expr, name string, logger *zap.Logger, fn func()) {
	if _, err := scheduler.AddFunc(expr, fn); err != nil {
		logger.Fatal("invalid cron expression",
			zap.String("schedule", name), zap.String("expr", expr), zap.Error(err))
	}
	logger.Info("schedule registered", zap.String("schedule", name), zap.String("expr", expr))
}
