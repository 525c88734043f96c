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

// Greenhouse scrapes Greenhouse-powered career pages. Listings come from the
// board JSON API with per_page/offset pagination; detail pages are HTML.
type Greenhouse struct {
	source   jobs.Source
	client   *Client
	strategy OffsetStrategy
	logger   *zap.Logger
}

// NewGreenhouse builds a Greenhouse scraper for one source.
func NewGreenhouse(source jobs.Source, client *Client, maxPages int, logger *zap.Logger) *Greenhouse {
	pageSize := source.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Greenhouse{
		source: source,
		client: client,
		strategy: OffsetStrategy{
			LimitParam:  "per_page",
			OffsetParam: "offset",
			PageSize:    pageSize,
			MaxPages:    maxPages,
			Logger:      logger,
		},
		logger: logger,
	}
}

// FetchAll delegates pagination to the offset strategy.
func (g *Greenhouse) FetchAll(ctx context.Context) ([]jobs.Posting, int, error) {
	postings, pages := g.strategy.FetchAll(ctx, g)
	return postings, pages, nil
}

type greenhouseListing struct {
	Jobs []greenhouseJob `json:"jobs"`
}

type greenhouseJob struct {
	ID          json.Number `json:"id"`
	Title       string      `json:"title"`
	AbsoluteURL string      `json:"absolute_url"`
	Location    struct {
		Name string `json:"name"`
	} `json:"location"`
	Departments []struct {
		Name string `json:"name"`
	} `json:"departments"`
}

// ListPage fetches and parses one page of the board API. Greenhouse responds
// with {"jobs": [...]} on board endpoints and a bare array on some legacy
// ones; both are accepted.
func (g *Greenhouse) ListPage(ctx context.Context, params url.Values) ([]jobs.Posting, string, error) {
	body, err := g.client.Get(ctx, g.source.ListingURL, params)
	if err != nil {
		return nil, "", err
	}
	telemetry.ObservePage(g.source.Name)

	var listing greenhouseListing
	if err := json.Unmarshal(body, &listing); err != nil {
		var bare []greenhouseJob
		if bareErr := json.Unmarshal(body, &bare); bareErr != nil {
			return nil, "", fmt.Errorf("parse greenhouse listing: %w", err)
		}
		listing.Jobs = bare
	}

	postings := make([]jobs.Posting, 0, len(listing.Jobs))
	for _, item := range listing.Jobs {
		p := jobs.Posting{
			SourceID:       g.source.ID,
			ExternalID:     item.ID.String(),
			Title:          item.Title,
			URL:            item.AbsoluteURL,
			Location:       item.Location.Name,
			AnalysisStatus: jobs.AnalysisPending,
		}
		if len(item.Departments) > 0 {
			p.Department = item.Departments[0].Name
		}
		postings = append(postings, p)
	}
	return postings, "", nil
}

// FetchDetail pulls the posting's HTML page and extracts the description.
// Greenhouse renders the body inside div#content (div#app_body on older
// boards); scripts and styles are stripped before text extraction.
func (g *Greenhouse) FetchDetail(ctx context.Context, p *jobs.Posting) error {
	body, err := g.client.Get(ctx, p.URL, nil)
	if err != nil {
		return fmt.Errorf("fetch detail %s: %w", p.URL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse detail %s: %w", p.URL, err)
	}

	content := doc.Find("div#content")
	if content.Length() == 0 {
		content = doc.Find("div#app_body")
	}
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
