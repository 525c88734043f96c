package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/entrylevelhq/jobcrawler/internal/enrich"
	"github.com/entrylevelhq/jobcrawler/internal/jobs"
	"github.com/entrylevelhq/jobcrawler/internal/prefilter"
	"github.com/entrylevelhq/jobcrawler/internal/ratelimit"
	"github.com/entrylevelhq/jobcrawler/internal/storage/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// fakeScraper serves scripted postings and per-posting detail behavior.
type fakeScraper struct {
	mu          sync.Mutex
	postings    []jobs.Posting
	pages       int
	fetchErr    error
	detailErr   map[string]error
	detailText  map[string]string
	detailCalls []string
	block       chan struct{} // when set, FetchAll waits until closed
}

func (f *fakeScraper) FetchAll(ctx context.Context) ([]jobs.Posting, int, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}
	if f.fetchErr != nil {
		return nil, 0, f.fetchErr
	}
	out := append([]jobs.Posting(nil), f.postings...)
	return out, f.pages, nil
}

func (f *fakeScraper) FetchDetail(_ context.Context, p *jobs.Posting) error {
	f.mu.Lock()
	f.detailCalls = append(f.detailCalls, p.ExternalID)
	f.mu.Unlock()
	if err := f.detailErr[p.ExternalID]; err != nil {
		return err
	}
	text, ok := f.detailText[p.ExternalID]
	if !ok {
		text = "description for " + p.ExternalID
	}
	p.RawDescriptionText = text
	p.RawDescriptionHTML = "<div>" + text + "</div>"
	return nil
}

func (f *fakeScraper) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.detailCalls...)
}

type stubClassifier struct {
	result jobs.Classification
	err    error
}

func (s *stubClassifier) Classify(context.Context, string, string) (jobs.Classification, error) {
	return s.result, s.err
}

func newTestAnalyzer(c jobs.Classifier) *enrich.Analyzer {
	return enrich.NewAnalyzer(c, ratelimit.New(100, time.Second), zap.NewNop())
}

func posting(id, title string) jobs.Posting {
	return jobs.Posting{
		SourceID:       1,
		ExternalID:     id,
		Title:          title,
		URL:            "https://jobs.example/" + id,
		AnalysisStatus: jobs.AnalysisPending,
	}
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := fixedClock{now: now}
	store := memory.NewJobStore(clock)
	blobs := memory.NewBlobStore()
	sc := &fakeScraper{
		postings: []jobs.Posting{
			posting("gh-1", "Junior Analyst"),
			posting("gh-2", "Senior Engineer"),
			posting("gh-3", "Support Associate"),
		},
		pages:     2,
		detailErr: map[string]error{"gh-3": errors.New("503 from upstream")},
	}

	pl := New(Config{
		Scraper:  sc,
		Matcher:  prefilter.New(),
		Analyzer: newTestAnalyzer(&stubClassifier{result: jobs.Classification{EntryLevel: true, Confidence: 80}}),
		Repo:     store,
		Blobs:    blobs,
		Clock:    clock,
	})

	source := jobs.Source{ID: 1, Name: "acme", Vendor: jobs.VendorGreenhouse}
	result := pl.Run(context.Background(), source)

	assert.Equal(t, jobs.CrawlSucceeded, result.Status)
	assert.Equal(t, 3, result.JobsFound)
	assert.Equal(t, 3, result.JobsAdded)
	assert.Equal(t, 2, result.PagesCrawled)

	// Prefilter-rejected posting never hits the network.
	assert.NotContains(t, sc.calls(), "gh-2")

	good, ok := store.Get(1, "gh-1")
	require.True(t, ok)
	assert.Equal(t, jobs.AnalysisAnalyzed, good.AnalysisStatus)
	require.NotNil(t, good.EntryLevel)
	assert.True(t, *good.EntryLevel)
	assert.Equal(t, "mem://acme/gh-1.html", good.BlobURI)
	assert.Equal(t, now, good.FirstSeenAt)

	rejected, ok := store.Get(1, "gh-2")
	require.True(t, ok)
	assert.Equal(t, jobs.AnalysisSkipped, rejected.AnalysisStatus)
	assert.True(t, rejected.PrefilterRejected)
	assert.Contains(t, rejected.PrefilterReason, "senior")

	// Detail failure leaves the posting without a description; enrichment
	// marks it failed, the run still succeeds.
	failed, ok := store.Get(1, "gh-3")
	require.True(t, ok)
	assert.Equal(t, jobs.AnalysisFailed, failed.AnalysisStatus)
	assert.Empty(t, failed.BlobURI)
}

func TestRunWithoutBlobStore(t *testing.T) {
	t.Parallel()

	clock := fixedClock{now: time.Now().UTC()}
	store := memory.NewJobStore(clock)
	sc := &fakeScraper{postings: []jobs.Posting{posting("gh-1", "Junior Analyst")}, pages: 1}

	pl := New(Config{
		Scraper:  sc,
		Matcher:  prefilter.New(),
		Analyzer: newTestAnalyzer(&stubClassifier{}),
		Repo:     store,
		Clock:    clock,
	})

	result := pl.Run(context.Background(), jobs.Source{ID: 1, Name: "acme"})
	assert.Equal(t, jobs.CrawlSucceeded, result.Status)

	got, ok := store.Get(1, "gh-1")
	require.True(t, ok)
	assert.Empty(t, got.BlobURI)
}

func TestRunDiscoveryErrorFailsRun(t *testing.T) {
	t.Parallel()

	clock := fixedClock{now: time.Now().UTC()}
	store := memory.NewJobStore(clock)
	sc := &fakeScraper{fetchErr: errors.New("connection refused")}

	pl := New(Config{
		Scraper:  sc,
		Matcher:  prefilter.New(),
		Analyzer: newTestAnalyzer(&stubClassifier{}),
		Repo:     store,
		Clock:    clock,
	})

	result := pl.Run(context.Background(), jobs.Source{ID: 1, Name: "acme"})
	assert.Equal(t, jobs.CrawlFailed, result.Status)
	assert.Contains(t, result.ErrorMessage, "connection refused")
	assert.Zero(t, store.Len())
}

type failingRepo struct {
	jobs.Repository
}

func (failingRepo) UpsertPostings(context.Context, []jobs.Posting) (int, error) {
	return 0, errors.New("connection reset")
}

func TestRunPersistErrorFailsRun(t *testing.T) {
	t.Parallel()

	clock := fixedClock{now: time.Now().UTC()}
	sc := &fakeScraper{postings: []jobs.Posting{posting("gh-1", "Junior Analyst")}, pages: 1}

	pl := New(Config{
		Scraper:  sc,
		Matcher:  prefilter.New(),
		Analyzer: newTestAnalyzer(&stubClassifier{}),
		Repo:     failingRepo{},
		Clock:    clock,
	})

	result := pl.Run(context.Background(), jobs.Source{ID: 1, Name: "acme"})
	assert.Equal(t, jobs.CrawlFailed, result.Status)
	assert.Contains(t, result.ErrorMessage, "persist postings")
}

func TestRunCanceledContextFailsRun(t *testing.T) {
	t.Parallel()

	clock := fixedClock{now: time.Now().UTC()}
	store := memory.NewJobStore(clock)
	sc := &fakeScraper{postings: []jobs.Posting{posting("gh-1", "Junior Analyst")}, pages: 1}

	pl := New(Config{
		Scraper:  sc,
		Matcher:  prefilter.New(),
		Analyzer: newTestAnalyzer(&stubClassifier{}),
		Repo:     store,
		Clock:    clock,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := pl.Run(ctx, jobs.Source{ID: 1, Name: "acme"})
	assert.Equal(t, jobs.CrawlFailed, result.Status)
	assert.Zero(t, store.Len())
}
