// Package memory provides in-memory storage for local development and tests.
// Semantics mirror the postgres provider.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/entrylevelhq/jobcrawler/internal/jobs"
)

type postingKey struct {
	sourceID   int64
	externalID string
}

// JobStore implements jobs.Repository on maps guarded by a mutex.
type JobStore struct {
	mu       sync.Mutex
	postings map[postingKey]jobs.Posting
	sources  map[int64]jobs.Source
	clock    jobs.Clock
	nextID   int64
}

// NewJobStore builds an empty store.
func NewJobStore(clock jobs.Clock) *JobStore {
	return &JobStore{
		postings: make(map[postingKey]jobs.Posting),
		sources:  make(map[int64]jobs.Source),
		clock:    clock,
		nextID:   1,
	}
}

// AddSource registers a source, assigning an ID when none is set.
func (s *JobStore) AddSource(source jobs.Source) jobs.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	if source.ID == 0 {
		source.ID = s.nextID
	}
	if source.ID >= s.nextID {
		s.nextID = source.ID + 1
	}
	s.sources[source.ID] = source
	return source
}

// UpsertPostings inserts or merges postings keyed by (source, external ID) and
// returns how many were new. On merge, listing metadata is overwritten, the
// first-seen timestamp and any existing description are kept, and analysis
// results are only applied while the stored posting is still pending.
func (s *JobStore) UpsertPostings(_ context.Context, postings []jobs.Posting) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, p := range postings {
		key := postingKey{sourceID: p.SourceID, externalID: p.ExternalID}
		existing, ok := s.postings[key]
		if !ok {
			if p.ID == 0 {
				p.ID = s.nextID
				s.nextID++
			}
			s.postings[key] = p
			inserted++
			continue
		}

		merged := existing
		merged.Title = p.Title
		merged.URL = p.URL
		merged.Location = p.Location
		merged.Department = p.Department
		merged.EmploymentType = p.EmploymentType
		merged.LastSeenAt = p.LastSeenAt
		if merged.RawDescriptionText == "" {
			merged.RawDescriptionText = p.RawDescriptionText
			merged.RawDescriptionHTML = p.RawDescriptionHTML
		}
		if merged.BlobURI == "" {
			merged.BlobURI = p.BlobURI
		}
		if existing.AnalysisStatus == jobs.AnalysisPending {
			merged.AnalysisStatus = p.AnalysisStatus
			merged.EntryLevel = p.EntryLevel
			merged.Confidence = p.Confidence
			merged.YearsRequired = p.YearsRequired
			merged.Reasoning = p.Reasoning
			merged.PrefilterRejected = p.PrefilterRejected
			merged.PrefilterReason = p.PrefilterReason
		}
		s.postings[key] = merged
	}
	return inserted, nil
}

// DeleteOlderThan removes postings first seen more than the given number of
// days ago and returns how many were removed.
func (s *JobStore) DeleteOlderThan(_ context.Context, days int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().AddDate(0, 0, -days)
	var deleted int64
	for key, p := range s.postings {
		if p.FirstSeenAt.Before(cutoff) {
			delete(s.postings, key)
			deleted++
		}
	}
	return deleted, nil
}

// GetRecent returns postings first seen within the given number of hours,
// newest first.
func (s *JobStore) GetRecent(_ context.Context, hours int) ([]jobs.Posting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().Add(-time.Duration(hours) * time.Hour)
	var out []jobs.Posting
	for _, p := range s.postings {
		if !p.FirstSeenAt.Before(cutoff) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FirstSeenAt.After(out[j].FirstSeenAt)
	})
	return out, nil
}

// ListActiveSources returns the active sources in ID order.
func (s *JobStore) ListActiveSources(_ context.Context) ([]jobs.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []jobs.Source
	for _, src := range s.sources {
		if src.IsActive {
			out = append(out, src)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateSourceCrawled records when a source was last crawled.
func (s *JobStore) UpdateSourceCrawled(_ context.Context, sourceID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.sources[sourceID]
	if !ok {
		return nil
	}
	src.LastCrawledAt = &at
	s.sources[sourceID] = src
	return nil
}

// Get returns one posting by key, for tests and the memory-mode API.
func (s *JobStore) Get(sourceID int64, externalID string) (jobs.Posting, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.postings[postingKey{sourceID: sourceID, externalID: externalID}]
	return p, ok
}

// Len reports how many postings are stored.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.postings)
}
