package jobs

import (
	"context"
	"time"
)

// Scraper is the capability set a listing vendor must implement. FetchAll
// drives pagination to exhaustion and returns every discovered posting plus
// the number of pages requested; FetchDetail pulls the full description for
// one posting, mutating it in place.
type Scraper interface {
	FetchAll(ctx context.Context) ([]Posting, int, error)
	FetchDetail(ctx context.Context, p *Posting) error
}

// Classifier invokes the external text-classification service. Callers must
// hold a rate-limiter token before invoking it.
type Classifier interface {
	Classify(ctx context.Context, title, description string) (Classification, error)
}

// Repository persists postings and source bookkeeping.
type Repository interface {
	// UpsertPostings writes the batch using (source_id, external_id) as the
	// conflict key and returns the count of newly inserted rows. A failure on
	// one record must not abort the rest of the batch.
	UpsertPostings(ctx context.Context, postings []Posting) (int, error)

	// DeleteOlderThan removes postings first seen more than the given number
	// of days ago and returns the count deleted.
	DeleteOlderThan(ctx context.Context, days int) (int64, error)

	// GetRecent returns postings first seen within the last N hours.
	GetRecent(ctx context.Context, hours int) ([]Posting, error)

	ListActiveSources(ctx context.Context) ([]Source, error)
	UpdateSourceCrawled(ctx context.Context, sourceID int64, at time.Time) error
}

// Publisher pushes run-completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore archives raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
