package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrylevelhq/jobcrawler/internal/jobs"
	"github.com/entrylevelhq/jobcrawler/internal/prefilter"
	pubmemory "github.com/entrylevelhq/jobcrawler/internal/publisher/memory"
	"github.com/entrylevelhq/jobcrawler/internal/storage/memory"
)

func newTestRunner(store *memory.JobStore, pub jobs.Publisher, factory ScraperFactory, clock jobs.Clock) *Runner {
	return NewRunner(RunnerConfig{
		Repo:       store,
		Publisher:  pub,
		Clock:      clock,
		NewScraper: factory,
		Topic:      "crawl-runs",
		Pipeline: Config{
			Matcher:  prefilter.New(),
			Analyzer: newTestAnalyzer(&stubClassifier{result: jobs.Classification{EntryLevel: true, Confidence: 75}}),
		},
	})
}

func TestRunAllAggregatesAcrossSources(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := fixedClock{now: now}
	store := memory.NewJobStore(clock)
	acme := store.AddSource(jobs.Source{Name: "acme", Vendor: jobs.VendorGreenhouse, IsActive: true})
	globex := store.AddSource(jobs.Source{Name: "globex", Vendor: jobs.VendorLever, IsActive: true})
	store.AddSource(jobs.Source{Name: "paused", Vendor: jobs.VendorLever, IsActive: false})

	scrapers := map[int64]*fakeScraper{
		acme.ID: {postings: []jobs.Posting{
			{SourceID: acme.ID, ExternalID: "gh-1", Title: "Junior Analyst", AnalysisStatus: jobs.AnalysisPending},
			{SourceID: acme.ID, ExternalID: "gh-2", Title: "Staff Engineer", AnalysisStatus: jobs.AnalysisPending},
		}, pages: 1},
		globex.ID: {fetchErr: errors.New("listing endpoint down")},
	}
	factory := func(source jobs.Source) (jobs.Scraper, error) {
		return scrapers[source.ID], nil
	}

	pub := pubmemory.New()
	r := newTestRunner(store, pub, factory, clock)

	summary, err := r.RunAll(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 2, summary.Sources)
	assert.Equal(t, 2, summary.JobsFound)
	assert.Equal(t, 2, summary.JobsAdded)
	assert.Equal(t, 1, summary.Failures)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, jobs.CrawlSucceeded, summary.Results[0].Status)
	assert.Equal(t, jobs.CrawlFailed, summary.Results[1].Status)
	assert.Contains(t, summary.Results[1].ErrorMessage, "listing endpoint down")

	// Both sources get their crawl timestamp bumped, even the failed one.
	sources, err := store.ListActiveSources(context.Background())
	require.NoError(t, err)
	for _, src := range sources {
		require.NotNil(t, src.LastCrawledAt, "source %s", src.Name)
	}

	// The summary event goes out on the configured topic.
	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "crawl-runs", msgs[0].Topic)
	var published jobs.RunSummary
	require.NoError(t, json.Unmarshal(msgs[0].Data, &published))
	assert.Equal(t, summary.RunID, published.RunID)
	assert.Equal(t, summary.JobsAdded, published.JobsAdded)
}

func TestRunAllRejectsOverlappingRuns(t *testing.T) {
	t.Parallel()

	clock := fixedClock{now: time.Now().UTC()}
	store := memory.NewJobStore(clock)
	source := store.AddSource(jobs.Source{Name: "acme", Vendor: jobs.VendorGreenhouse, IsActive: true})

	block := make(chan struct{})
	sc := &fakeScraper{block: block}
	factory := func(jobs.Source) (jobs.Scraper, error) { return sc, nil }
	_ = source

	r := newTestRunner(store, nil, factory, clock)

	var wg sync.WaitGroup
	wg.Add(1)
	started := make(chan struct{})
	go func() {
		defer wg.Done()
		close(started)
		_, err := r.RunAll(context.Background())
		assert.NoError(t, err)
	}()

	<-started
	// Give the first run a moment to take the lock.
	require.Eventually(t, func() bool {
		_, err := r.RunAll(context.Background())
		return errors.Is(err, ErrCrawlInProgress)
	}, time.Second, 5*time.Millisecond)

	close(block)
	wg.Wait()

	// The lock is free again after the run finishes.
	_, err := r.RunAll(context.Background())
	assert.NoError(t, err)
}

func TestRunSourceFactoryErrorRecorded(t *testing.T) {
	t.Parallel()

	clock := fixedClock{now: time.Now().UTC()}
	store := memory.NewJobStore(clock)
	store.AddSource(jobs.Source{Name: "acme", Vendor: "workday", IsActive: true})

	factory := func(source jobs.Source) (jobs.Scraper, error) {
		return nil, errors.New("no scraper for vendor \"workday\"")
	}
	r := newTestRunner(store, nil, factory, clock)

	summary, err := r.RunAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failures)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, jobs.CrawlFailed, summary.Results[0].Status)
}

func TestCleanup(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := fixedClock{now: now}
	store := memory.NewJobStore(clock)
	_, err := store.UpsertPostings(context.Background(), []jobs.Posting{
		{SourceID: 1, ExternalID: "old", FirstSeenAt: now.AddDate(0, 0, -10)},
		{SourceID: 1, ExternalID: "fresh", FirstSeenAt: now},
	})
	require.NoError(t, err)

	r := newTestRunner(store, nil, nil, clock)
	deleted, err := r.Cleanup(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Equal(t, 1, store.Len())
}
