// Package digest renders plain-text summaries of recently discovered
// postings, suitable for email or chat delivery.
package digest

import (
	"context"
	"fmt"
	"strings"

	"github.com/entrylevelhq/jobcrawler/internal/jobs"
)

// Build renders the digest for a set of postings. Confirmed entry-level
// matches come first, then the remaining postings that were not screened out.
func Build(postings []jobs.Posting, hours int) string {
	var matches, others []jobs.Posting
	for _, p := range postings {
		switch {
		case p.EntryLevel != nil && *p.EntryLevel:
			matches = append(matches, p)
		case p.PrefilterRejected:
			// Screened out by title, not worth a line.
		default:
			others = append(others, p)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Job digest: %d new postings in the last %dh\n", len(postings), hours)

	if len(matches) > 0 {
		fmt.Fprintf(&b, "\nEntry-level matches (%d):\n", len(matches))
		for _, p := range matches {
			writeLine(&b, p)
			if p.Confidence != nil {
				fmt.Fprintf(&b, "    confidence %d%%", *p.Confidence)
				if p.Reasoning != "" {
					fmt.Fprintf(&b, ": %s", p.Reasoning)
				}
				b.WriteString("\n")
			}
		}
	}

	if len(others) > 0 {
		fmt.Fprintf(&b, "\nOther new postings (%d):\n", len(others))
		for _, p := range others {
			writeLine(&b, p)
		}
	}

	if len(matches) == 0 && len(others) == 0 {
		b.WriteString("\nNothing new to report.\n")
	}
	return b.String()
}

func writeLine(b *strings.Builder, p jobs.Posting) {
	fmt.Fprintf(b, "  - %s", p.Title)
	if p.Location != "" {
		fmt.Fprintf(b, " (%s)", p.Location)
	}
	if p.URL != "" {
		fmt.Fprintf(b, "\n    %s", p.URL)
	}
	b.WriteString("\n")
}

// FromRepository builds the digest for postings first seen within the given
// window.
func FromRepository(ctx context.Context, repo jobs.Repository, hours int) (string, error) {
	postings, err := repo.GetRecent(ctx, hours)
	if err != nil {
		return "", fmt.Errorf("load recent postings: %w", err)
	}
	return Build(postings, hours), nil
}
