package scraper

import (
	"context"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/entrylevelhq/jobcrawler/internal/jobs"
)

// pageLister is the per-vendor seam driven by the pagination strategies: one
// page request plus parsing, returning the postings on that page and the next
// cursor (empty for offset-style APIs).
type pageLister interface {
	ListPage(ctx context.Context, params url.Values) ([]jobs.Posting, string, error)
}

// defaultMaxPages caps pagination when the caller configures no safety valve,
// so a pathological upstream that keeps returning full pages cannot spin the
// crawl forever.
const defaultMaxPages = 50

// OffsetStrategy pages through limit/offset style listing APIs. Parameter
// names are configurable per source.
type OffsetStrategy struct {
	LimitParam  string
	OffsetParam string
	PageSize    int
	MaxPages    int
	Logger      *zap.Logger
}

// FetchAll requests successive pages until the upstream is exhausted: a page
// with zero records, or a short page, terminates the loop. A fetch or parse
// error stops pagination and keeps what was accumulated. Returns the postings
// and the number of page requests issued.
func (s OffsetStrategy) FetchAll(ctx context.Context, list pageLister) ([]jobs.Posting, int) {
	limitParam := s.LimitParam
	if limitParam == "" {
		limitParam = "limit"
	}
	offsetParam := s.OffsetParam
	if offsetParam == "" {
		offsetParam = "offset"
	}
	pageSize := s.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	maxPages := s.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var all []jobs.Posting
	offset := 0
	pages := 0

	for pages < maxPages {
		if ctx.Err() != nil {
			logger.Warn("pagination canceled", zap.Int("offset", offset))
			break
		}
		params := url.Values{}
		params.Set(limitParam, strconv.Itoa(pageSize))
		params.Set(offsetParam, strconv.Itoa(offset))

		logger.Debug("fetching page", zap.Int("offset", offset))
		postings, _, err := list.ListPage(ctx, params)
		pages++
		if err != nil {
			logger.Error("pagination stopped", zap.Int("offset", offset), zap.Error(err))
			break
		}
		if len(postings) == 0 {
			break
		}
		all = append(all, postings...)
		if len(postings) < pageSize {
			// Short page means last page.
			break
		}
		offset += pageSize
	}

	return all, pages
}

// CursorStrategy pages through cursor/token style listing APIs. The cursor
// parameter name is configurable per source and defaults to "cursor".
type CursorStrategy struct {
	Param    string
	MaxPages int
	Logger   *zap.Logger
}

// FetchAll requests successive pages, threading the cursor returned by each
// page into the next request. Pagination stops when the next cursor is absent
// or identical to the one just sent (cycle/stall detection). Errors stop
// pagination and keep what was accumulated. Returns the postings and the
// number of page requests issued.
func (s CursorStrategy) FetchAll(ctx context.Context, list pageLister) ([]jobs.Posting, int) {
	param := s.Param
	if param == "" {
		param = "cursor"
	}
	maxPages := s.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var all []jobs.Posting
	cursor := ""
	pages := 0

	for pages < maxPages {
		if ctx.Err() != nil {
			logger.Warn("pagination canceled", zap.String("cursor", cursor))
			break
		}
		params := url.Values{}
		if cursor != "" {
			params.Set(param, cursor)
		}

		logger.Debug("fetching page", zap.String("cursor", cursor))
		postings, next, err := list.ListPage(ctx, params)
		pages++
		if err != nil {
			logger.Error("pagination stopped", zap.String("cursor", cursor), zap.Error(err))
			break
		}
		all = append(all, postings...)
		if next == "" || next == cursor {
			break
		}
		cursor = next
	}

	return all, pages
}
