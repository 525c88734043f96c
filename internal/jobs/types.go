// Package jobs defines core types shared across subsystems.
package jobs

import "time"

// AnalysisStatus tracks where a posting sits in the enrichment lifecycle.
type AnalysisStatus string

// Analysis status values persisted with each posting. Transitions are
// monotonic within a run: pending -> skipped | failed | analyzed.
const (
	AnalysisPending  AnalysisStatus = "pending"
	AnalysisAnalyzed AnalysisStatus = "analyzed"
	AnalysisFailed   AnalysisStatus = "failed"
	AnalysisSkipped  AnalysisStatus = "skipped"
)

// Vendor identifies which listing platform backs a source.
type Vendor string

// Supported listing vendors.
const (
	VendorGreenhouse Vendor = "greenhouse"
	VendorLever      Vendor = "lever"
)

// Source is a tracked company career page. Owned by configuration storage;
// the pipeline treats it as read-only.
type Source struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	ListingURL    string     `json:"listing_url"`
	Vendor        Vendor     `json:"vendor"`
	PageSize      int        `json:"page_size"`
	IsActive      bool       `json:"is_active"`
	LastCrawledAt *time.Time `json:"last_crawled_at,omitempty"`
}

// Posting is one discovered job posting. The natural key is
// (SourceID, ExternalID); uniqueness is enforced at persistence.
type Posting struct {
	ID         int64  `json:"id,omitempty"`
	SourceID   int64  `json:"source_id"`
	ExternalID string `json:"external_id"`
	Title      string `json:"title"`
	URL        string `json:"url"`

	Location       string `json:"location,omitempty"`
	Department     string `json:"department,omitempty"`
	EmploymentType string `json:"employment_type,omitempty"`

	RawDescriptionText string `json:"raw_description_text,omitempty"`
	RawDescriptionHTML string `json:"raw_description_html,omitempty"`
	BlobURI            string `json:"blob_uri,omitempty"`

	AnalysisStatus AnalysisStatus `json:"analysis_status"`
	EntryLevel     *bool          `json:"ai_is_entry_level,omitempty"`
	Confidence     *int           `json:"ai_confidence_score,omitempty"`
	YearsRequired  *int           `json:"ai_years_required,omitempty"`
	Reasoning      string         `json:"ai_reasoning,omitempty"`

	PrefilterRejected bool   `json:"prefilter_rejected"`
	PrefilterReason   string `json:"prefilter_reason,omitempty"`

	FirstSeenAt time.Time `json:"first_seen_at,omitempty"`
	LastSeenAt  time.Time `json:"last_seen_at,omitempty"`
}

// CrawlStatus is the terminal state of one pipeline run.
type CrawlStatus string

// Crawl status values.
const (
	CrawlSucceeded CrawlStatus = "success"
	CrawlFailed    CrawlStatus = "failed"
)

// CrawlResult summarizes one pipeline run for one source. Immutable once
// returned.
type CrawlResult struct {
	SourceID     int64       `json:"source_id"`
	SourceName   string      `json:"source_name"`
	JobsFound    int         `json:"jobs_found"`
	JobsAdded    int         `json:"jobs_added"`
	PagesCrawled int         `json:"pages_crawled"`
	Status       CrawlStatus `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// RunSummary aggregates the crawl results of one trigger run across all
// active sources. It is the payload of the completion event.
type RunSummary struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Sources    int           `json:"sources"`
	JobsFound  int           `json:"jobs_found"`
	JobsAdded  int           `json:"jobs_added"`
	Failures   int           `json:"failures"`
	Results    []CrawlResult `json:"results"`
}

// Classification is the structured verdict of the external text classifier.
type Classification struct {
	EntryLevel    bool   `json:"is_entry_level"`
	Confidence    int    `json:"confidence"`
	YearsRequired int    `json:"min_years_experience"`
	Reasoning     string `json:"reasoning"`
}
