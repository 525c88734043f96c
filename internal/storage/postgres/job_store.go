// Package postgres implements the job repository on PostgreSQL via pgx.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/entrylevelhq/jobcrawler/internal/jobs"
)

// DB is the subset of pgxpool.Pool the store needs. pgxmock satisfies it in
// tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// JobStore implements jobs.Repository on PostgreSQL.
type JobStore struct {
	db     DB
	logger *zap.Logger
}

// NewJobStore builds a store on an open pool.
func NewJobStore(db DB, logger *zap.Logger) *JobStore {
	return &JobStore{db: db, logger: logger}
}

// Close releases the underlying pool.
func (s *JobStore) Close() {
	s.db.Close()
}

// upsertSQL deduplicates on (source_id, external_id). Listing metadata is
// last-write-wins; the description is first-write-wins; analysis results are
// only applied while the stored row is still pending. xmax = 0 distinguishes
// a fresh insert from a conflict update.
const upsertSQL = `
INSERT INTO jobs (
    source_id, external_id, title, url, location, department, employment_type,
    raw_description_text, raw_description_html, blob_uri,
    analysis_status, entry_level, confidence, years_required, reasoning,
    prefilter_rejected, prefilter_reason, first_seen_at, last_seen_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
    $11, $12, $13, $14, $15, $16, $17, $18, $19
)
ON CONFLICT (source_id, external_id) DO UPDATE SET
    title = EXCLUDED.title,
    url = EXCLUDED.url,
    location = EXCLUDED.location,
    department = EXCLUDED.department,
    employment_type = EXCLUDED.employment_type,
    raw_description_text = COALESCE(NULLIF(jobs.raw_description_text, ''), EXCLUDED.raw_description_text),
    raw_description_html = COALESCE(NULLIF(jobs.raw_description_html, ''), EXCLUDED.raw_description_html),
    blob_uri = COALESCE(NULLIF(jobs.blob_uri, ''), EXCLUDED.blob_uri),
    analysis_status = CASE WHEN jobs.analysis_status = 'pending'
        THEN EXCLUDED.analysis_status ELSE jobs.analysis_status END,
    entry_level = CASE WHEN jobs.analysis_status = 'pending'
        THEN EXCLUDED.entry_level ELSE jobs.entry_level END,
    confidence = CASE WHEN jobs.analysis_status = 'pending'
        THEN EXCLUDED.confidence ELSE jobs.confidence END,
    years_required = CASE WHEN jobs.analysis_status = 'pending'
        THEN EXCLUDED.years_required ELSE jobs.years_required END,
    reasoning = CASE WHEN jobs.analysis_status = 'pending'
        THEN EXCLUDED.reasoning ELSE jobs.reasoning END,
    prefilter_rejected = CASE WHEN jobs.analysis_status = 'pending'
        THEN EXCLUDED.prefilter_rejected ELSE jobs.prefilter_rejected END,
    prefilter_reason = CASE WHEN jobs.analysis_status = 'pending'
        THEN EXCLUDED.prefilter_reason ELSE jobs.prefilter_reason END,
    last_seen_at = EXCLUDED.last_seen_at
RETURNING id, (xmax = 0) AS is_new`

// UpsertPostings writes postings one at a time and returns how many were new
// inserts. A failure on one posting is logged and the rest continue; only
// context cancellation aborts the batch.
func (s *JobStore) UpsertPostings(ctx context.Context, postings []jobs.Posting) (int, error) {
	inserted := 0
	for i := range postings {
		if err := ctx.Err(); err != nil {
			return inserted, fmt.Errorf("upsert aborted: %w", err)
		}
		p := &postings[i]
		var id int64
		var isNew bool
		err := s.db.QueryRow(ctx, upsertSQL,
			p.SourceID, p.ExternalID, p.Title, p.URL, p.Location, p.Department,
			p.EmploymentType, p.RawDescriptionText, p.RawDescriptionHTML,
			p.BlobURI, p.AnalysisStatus, p.EntryLevel, p.Confidence,
			p.YearsRequired, p.Reasoning, p.PrefilterRejected,
			p.PrefilterReason, p.FirstSeenAt, p.LastSeenAt,
		).Scan(&id, &isNew)
		if err != nil {
			s.logger.Error("upsert posting failed",
				zap.String("external_id", p.ExternalID), zap.Error(err))
			continue
		}
		p.ID = id
		if isNew {
			inserted++
		}
	}
	return inserted, nil
}

// DeleteOlderThan removes postings first seen more than the given number of
// days ago.
func (s *JobStore) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM jobs WHERE first_seen_at < now() - make_interval(days => $1)`, days)
	if err != nil {
		return 0, fmt.Errorf("delete old postings: %w", err)
	}
	return tag.RowsAffected(), nil
}

const selectPostingSQL = `
SELECT id, source_id, external_id, title, url, location, department,
       employment_type, raw_description_text, raw_description_html, blob_uri,
       analysis_status, entry_level, confidence, years_required, reasoning,
       prefilter_rejected, prefilter_reason, first_seen_at, last_seen_at
FROM jobs`

// GetRecent returns postings first seen within the given number of hours,
// newest first.
func (s *JobStore) GetRecent(ctx context.Context, hours int) ([]jobs.Posting, error) {
	rows, err := s.db.Query(ctx,
		selectPostingSQL+` WHERE first_seen_at >= now() - make_interval(hours => $1)
ORDER BY first_seen_at DESC`, hours)
	if err != nil {
		return nil, fmt.Errorf("query recent postings: %w", err)
	}
	defer rows.Close()

	var out []jobs.Posting
	for rows.Next() {
		var p jobs.Posting
		if err := rows.Scan(
			&p.ID, &p.SourceID, &p.ExternalID, &p.Title, &p.URL, &p.Location,
			&p.Department, &p.EmploymentType, &p.RawDescriptionText,
			&p.RawDescriptionHTML, &p.BlobURI, &p.AnalysisStatus,
			&p.EntryLevel, &p.Confidence, &p.YearsRequired, &p.Reasoning,
			&p.PrefilterRejected, &p.PrefilterReason, &p.FirstSeenAt,
			&p.LastSeenAt,
		); err != nil {
			return nil, fmt.Errorf("scan posting: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate postings: %w", err)
	}
	return out, nil
}

// ListActiveSources returns the active sources in ID order.
func (s *JobStore) ListActiveSources(ctx context.Context) ([]jobs.Source, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, listing_url, vendor, page_size, is_active, last_crawled_at
FROM sources WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var out []jobs.Source
	for rows.Next() {
		var src jobs.Source
		if err := rows.Scan(
			&src.ID, &src.Name, &src.ListingURL, &src.Vendor, &src.PageSize,
			&src.IsActive, &src.LastCrawledAt,
		); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return out, nil
}

// UpdateSourceCrawled records when a source was last crawled.
func (s *JobStore) UpdateSourceCrawled(ctx context.Context, sourceID int64, at time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE sources SET last_crawled_at = $2 WHERE id = $1`, sourceID, at)
	if err != nil {
		return fmt.Errorf("update source %d: %w", sourceID, err)
	}
	return nil
}
