package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/entrylevelhq/jobcrawler/internal/jobs"
)

// ErrCrawlInProgress is returned when a run is requested while another run
// still holds the lock.
var ErrCrawlInProgress = errors.New("crawl already in progress")

// ScraperFactory builds the vendor scraper for one source.
type ScraperFactory func(source jobs.Source) (jobs.Scraper, error)

// Runner executes full crawl runs across every active source, one source at a
// time, guarding against overlapping runs.
type Runner struct {
	mu sync.Mutex

	repo       jobs.Repository
	publisher  jobs.Publisher
	clock      jobs.Clock
	logger     *zap.Logger
	newScraper ScraperFactory
	newID      func() string
	topic      string

	pipelineCfg Config
}

// RunnerConfig carries the Runner's collaborators. The embedded pipeline
// Config supplies everything except the per-source scraper, which the factory
// builds fresh each run. Publisher and Topic are optional.
type RunnerConfig struct {
	Repo       jobs.Repository
	Publisher  jobs.Publisher
	Clock      jobs.Clock
	Logger     *zap.Logger
	NewScraper ScraperFactory
	Topic      string

	Pipeline Config
}

// NewRunner builds a Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		repo:        cfg.Repo,
		publisher:   cfg.Publisher,
		clock:       cfg.Clock,
		logger:      logger,
		newScraper:  cfg.NewScraper,
		newID:       uuid.NewString,
		topic:       cfg.Topic,
		pipelineCfg: cfg.Pipeline,
	}
}

// RunAll crawls every active source and returns the run summary. Only one run
// may be in flight; concurrent calls get ErrCrawlInProgress immediately. A
// source that fails to crawl is recorded in the summary and the run moves on.
func (r *Runner) RunAll(ctx context.Context) (jobs.RunSummary, error) {
	if !r.mu.TryLock() {
		return jobs.RunSummary{}, ErrCrawlInProgress
	}
	defer r.mu.Unlock()
	return r.runLocked(ctx)
}

// RunAllAsync starts a run in the background and returns immediately. The
// caller learns only whether the run was accepted; progress is observable
// through logs, metrics, and the published summary.
func (r *Runner) RunAllAsync(ctx context.Context) error {
	if !r.mu.TryLock() {
		return ErrCrawlInProgress
	}
	go func() {
		defer r.mu.Unlock()
		if _, err := r.runLocked(ctx); err != nil {
			r.logger.Error("background run failed", zap.Error(err))
		}
	}()
	return nil
}

func (r *Runner) runLocked(ctx context.Context) (jobs.RunSummary, error) {
	summary := jobs.RunSummary{
		RunID:     r.newID(),
		StartedAt: r.clock.Now(),
	}
	logger := r.logger.With(zap.String("run_id", summary.RunID))
	logger.Info("run started")

	sources, err := r.repo.ListActiveSources(ctx)
	if err != nil {
		return summary, fmt.Errorf("list active sources: %w", err)
	}
	summary.Sources = len(sources)

	for _, source := range sources {
		if ctx.Err() != nil {
			logger.Warn("run canceled", zap.Error(ctx.Err()))
			break
		}
		result := r.runSource(ctx, source, logger)
		summary.Results = append(summary.Results, result)
		summary.JobsFound += result.JobsFound
		summary.JobsAdded += result.JobsAdded
		if result.Status == jobs.CrawlFailed {
			summary.Failures++
		}
	}

	summary.FinishedAt = r.clock.Now()
	logger.Info("run finished",
		zap.Int("sources", summary.Sources),
		zap.Int("found", summary.JobsFound),
		zap.Int("added", summary.JobsAdded),
		zap.Int("failures", summary.Failures),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)))

	r.publishSummary(ctx, summary, logger)
	return summary, nil
}

func (r *Runner) runSource(ctx context.Context, source jobs.Source, logger *zap.Logger) jobs.CrawlResult {
	sc, err := r.newScraper(source)
	if err != nil {
		logger.Error("scraper setup failed",
			zap.String("source", source.Name), zap.Error(err))
		return jobs.CrawlResult{
			SourceID:     source.ID,
			SourceName:   source.Name,
			Status:       jobs.CrawlFailed,
			ErrorMessage: err.Error(),
		}
	}

	cfg := r.pipelineCfg
	cfg.Scraper = sc
	cfg.Repo = r.repo
	cfg.Clock = r.clock
	cfg.Logger = r.logger
	result := New(cfg).Run(ctx, source)

	if err := r.repo.UpdateSourceCrawled(ctx, source.ID, r.clock.Now()); err != nil {
		logger.Warn("update source timestamp failed",
			zap.String("source", source.Name), zap.Error(err))
	}
	return result
}

// publishSummary emits the run summary event when a publisher is configured.
// Publish failures are logged; the run outcome stands.
func (r *Runner) publishSummary(ctx context.Context, summary jobs.RunSummary, logger *zap.Logger) {
	if r.publisher == nil || r.topic == "" {
		return
	}
	id, err := r.publisher.Publish(ctx, r.topic, summary)
	if err != nil {
		logger.Warn("publish run summary failed", zap.Error(err))
		return
	}
	logger.Debug("run summary published", zap.String("message_id", id))
}

// Cleanup deletes postings first seen more than retentionDays ago.
func (r *Runner) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	deleted, err := r.repo.DeleteOlderThan(ctx, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("delete old postings: %w", err)
	}
	r.logger.Info("cleanup finished",
		zap.Int64("deleted", deleted), zap.Int("retention_days", retentionDays))
	return deleted, nil
}
