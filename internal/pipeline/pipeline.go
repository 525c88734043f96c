// Package pipeline orchestrates the crawl: discovery, prefiltering, detail
// fetching, enrichment, and persistence for one source at a time.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/entrylevelhq/jobcrawler/internal/enrich"
	"github.com/entrylevelhq/jobcrawler/internal/jobs"
	"github.com/entrylevelhq/jobcrawler/internal/prefilter"
	"github.com/entrylevelhq/jobcrawler/internal/telemetry"
)

const (
	defaultFetchConcurrency  = 5
	defaultEnrichConcurrency = 1
)

// Pipeline runs the full crawl for one source. Detail fetches and enrichment
// calls run under separate concurrency bounds; a failure on one posting never
// aborts the others.
type Pipeline struct {
	scraper  jobs.Scraper
	matcher  *prefilter.Matcher
	analyzer *enrich.Analyzer
	repo     jobs.Repository
	blobs    jobs.BlobStore
	clock    jobs.Clock
	logger   *zap.Logger

	fetchConcurrency  int
	enrichConcurrency int
}

// Config carries the pipeline's collaborators. Blobs is optional; when nil,
// raw detail pages are not archived.
type Config struct {
	Scraper           jobs.Scraper
	Matcher           *prefilter.Matcher
	Analyzer          *enrich.Analyzer
	Repo              jobs.Repository
	Blobs             jobs.BlobStore
	Clock             jobs.Clock
	Logger            *zap.Logger
	FetchConcurrency  int
	EnrichConcurrency int
}

// New builds a Pipeline, applying concurrency defaults.
func New(cfg Config) *Pipeline {
	fetch := cfg.FetchConcurrency
	if fetch <= 0 {
		fetch = defaultFetchConcurrency
	}
	enrichBound := cfg.EnrichConcurrency
	if enrichBound <= 0 {
		enrichBound = defaultEnrichConcurrency
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		scraper:           cfg.Scraper,
		matcher:           cfg.Matcher,
		analyzer:          cfg.Analyzer,
		repo:              cfg.Repo,
		blobs:             cfg.Blobs,
		clock:             cfg.Clock,
		logger:            logger,
		fetchConcurrency:  fetch,
		enrichConcurrency: enrichBound,
	}
}

// Run crawls one source end to end and reports the outcome. Discovery and
// persistence failures fail the run; per-posting detail or enrichment
// failures are recorded on the posting and the run continues.
func (pl *Pipeline) Run(ctx context.Context, source jobs.Source) jobs.CrawlResult {
	result := jobs.CrawlResult{
		SourceID:   source.ID,
		SourceName: source.Name,
		Status:     jobs.CrawlSucceeded,
	}
	logger := pl.logger.With(zap.String("source", source.Name))

	logger.Info("crawl started")
	postings, pages, err := pl.scraper.FetchAll(ctx)
	result.PagesCrawled = pages
	if err != nil {
		return pl.fail(result, logger, fmt.Errorf("discover postings: %w", err))
	}
	result.JobsFound = len(postings)
	telemetry.ObservePostingsFound(source.Name, len(postings))
	logger.Info("discovery finished",
		zap.Int("postings", len(postings)), zap.Int("pages", pages))

	if ctx.Err() != nil {
		return pl.fail(result, logger, fmt.Errorf("after discovery: %w", ctx.Err()))
	}

	for i := range postings {
		pl.matcher.Filter(&postings[i])
	}

	pl.processCandidates(ctx, source, postings, logger)

	if ctx.Err() != nil {
		return pl.fail(result, logger, fmt.Errorf("after enrichment: %w", ctx.Err()))
	}

	now := pl.clock.Now()
	for i := range postings {
		postings[i].FirstSeenAt = now
		postings[i].LastSeenAt = now
	}

	inserted, err := pl.repo.UpsertPostings(ctx, postings)
	if err != nil {
		return pl.fail(result, logger, fmt.Errorf("persist postings: %w", err))
	}
	result.JobsAdded = inserted
	telemetry.ObservePostingsInserted(source.Name, inserted)
	telemetry.ObserveRun(string(jobs.CrawlSucceeded))

	logger.Info("crawl finished",
		zap.Int("found", result.JobsFound),
		zap.Int("added", result.JobsAdded),
		zap.Int("pages", result.PagesCrawled))
	return result
}

// processCandidates runs detail fetch, archival, and enrichment for every
// posting the prefilter kept. Each posting gets its own goroutine; the fetch
// and enrich bounds are enforced with buffered-channel semaphores.
func (pl *Pipeline) processCandidates(ctx context.Context, source jobs.Source, postings []jobs.Posting, logger *zap.Logger) {
	fetchSem := make(chan struct{}, pl.fetchConcurrency)
	enrichSem := make(chan struct{}, pl.enrichConcurrency)

	var wg sync.WaitGroup
	for i := range postings {
		if postings[i].PrefilterRejected {
			continue
		}
		wg.Add(1)
		go func(p *jobs.Posting) {
			defer wg.Done()
			pl.processOne(ctx, source, p, fetchSem, enrichSem, logger)
		}(&postings[i])
	}
	wg.Wait()
}

func (pl *Pipeline) processOne(ctx context.Context, source jobs.Source, p *jobs.Posting, fetchSem, enrichSem chan struct{}, logger *zap.Logger) {
	if ctx.Err() != nil {
		return
	}

	fetchSem <- struct{}{}
	err := pl.scraper.FetchDetail(ctx, p)
	<-fetchSem
	if err != nil {
		telemetry.ObserveDetailFetchFailure(source.Name)
		logger.Warn("detail fetch failed",
			zap.String("external_id", p.ExternalID), zap.Error(err))
	}

	pl.archive(ctx, source, p, logger)

	if ctx.Err() != nil {
		return
	}

	enrichSem <- struct{}{}
	err = pl.analyzer.Analyze(ctx, p)
	<-enrichSem
	if err != nil {
		logger.Warn("enrichment failed",
			zap.String("external_id", p.ExternalID), zap.Error(err))
	}
}

// archive stores the raw detail HTML when a blob store is configured. Archive
// failures are logged and the posting continues without a blob reference.
func (pl *Pipeline) archive(ctx context.Context, source jobs.Source, p *jobs.Posting, logger *zap.Logger) {
	if pl.blobs == nil || p.RawDescriptionHTML == "" {
		return
	}
	path := fmt.Sprintf("%s/%s.html", source.Name, p.ExternalID)
	uri, err := pl.blobs.PutObject(ctx, path, "text/html", []byte(p.RawDescriptionHTML))
	if err != nil {
		logger.Warn("blob archive failed",
			zap.String("external_id", p.ExternalID), zap.Error(err))
		return
	}
	p.BlobURI = uri
}

func (pl *Pipeline) fail(result jobs.CrawlResult, logger *zap.Logger, err error) jobs.CrawlResult {
	result.Status = jobs.CrawlFailed
	result.ErrorMessage = err.Error()
	telemetry.ObserveRun(string(jobs.CrawlFailed))
	logger.Error("crawl failed", zap.Error(err))
	return result
}
