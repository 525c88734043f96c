package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/entrylevelhq/jobcrawler/internal/jobs"
	"github.com/entrylevelhq/jobcrawler/internal/telemetry"
)

// Lever scrapes Lever-hosted postings. The postings API paginates with an
// opaque token carried in the "offset" parameter.
type Lever struct {
	source   jobs.Source
	client   *Client
	strategy CursorStrategy
	logger   *zap.Logger
}

// NewLever builds a Lever scraper for one source.
func NewLever(source jobs.Source, client *Client, maxPages int, logger *zap.Logger) *Lever {
	return &Lever{
		source: source,
		client: client,
		strategy: CursorStrategy{
			Param:    "offset",
			MaxPages: maxPages,
			Logger:   logger,
		},
		logger: logger,
	}
}

// FetchAll delegates pagination to the cursor strategy.
func (l *Lever) FetchAll(ctx context.Context) ([]jobs.Posting, int, error) {
	postings, pages := l.strategy.FetchAll(ctx, l)
	return postings, pages, nil
}

type leverListing struct {
	Data    []leverPosting `json:"data"`
	HasNext bool           `json:"hasNext"`
	Next    string         `json:"next"`
}

type leverPosting struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	HostedURL  string `json:"hostedUrl"`
	Categories struct {
		Location   string `json:"location"`
		Team       string `json:"team"`
		Commitment string `json:"commitment"`
	} `json:"categories"`
}

// ListPage fetches and parses one page of the postings API. Envelope
// responses carry a continuation token; a bare array means a single page.
func (l *Lever) ListPage(ctx context.Context, params url.Values) ([]jobs.Posting, string, error) {
	params.Set("mode", "json")
	body, err := l.client.Get(ctx, l.source.ListingURL, params)
	if err != nil {
		return nil, "", err
	}
	telemetry.ObservePage(l.source.Name)

	var listing leverListing
	if err := json.Unmarshal(body, &listing); err != nil {
		var bare []leverPosting
		if bareErr := json.Unmarshal(body, &bare); bareErr != nil {
			return nil, "", fmt.Errorf("parse lever listing: %w", err)
		}
		listing.Data = bare
	}

	postings := make([]jobs.Posting, 0, len(listing.Data))
	for _, item := range listing.Data {
		postings = append(postings, jobs.Posting{
			SourceID:       l.source.ID,
			ExternalID:     item.ID,
			Title:          item.Text,
			URL:            item.HostedURL,
			Location:       item.Categories.Location,
			Department:     item.Categories.Team,
			EmploymentType: item.Categories.Commitment,
			AnalysisStatus: jobs.AnalysisPending,
		})
	}

	next := ""
	if listing.HasNext {
		next = listing.Next
	}
	return postings, next, nil
}

// FetchDetail pulls the hosted posting page and extracts the description
// from the posting container, falling back to whole-document text.
func (l *Lever) FetchDetail(ctx context.Context, p *jobs.Posting) error {
	body, err := l.client.Get(ctx, p.URL, nil)
	if err != nil {
		return fmt.Errorf("fetch detail %s: %w", p.URL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse detail %s: %w", p.URL, err)
	}

	content := doc.Find("div.posting")
	if content.Length() == 0 {
		p.RawDescriptionText = strings.TrimSpace(doc.Text())
		return nil
	}

	content.Find("script, style").Remove()
	if html, err := goquery.OuterHtml(content.First()); err == nil {
		p.RawDescriptionHTML = html
	}
	p.RawDescriptionText = strings.TrimSpace(content.Text())
	return nil
}

// ForSource selects the vendor scraper for a source configuration.
func ForSource(source jobs.Source, client *Client, maxPages int, logger *zap.Logger) (jobs.Scraper, error) {
	switch source.Vendor {
	case jobs.VendorGreenhouse:
		return NewGreenhouse(source, client, maxPages, logger), nil
	case jobs.VendorLever:
		return NewLever(source, client, maxPages, logger), nil
	default:
		return nil, fmt.Errorf("no scraper for vendor %q", source.Vendor)
	}
}
