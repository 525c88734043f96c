// Package prefilter implements the cheap keyword heuristic applied to every
// posting before any network or classification cost is spent.
package prefilter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/entrylevelhq/jobcrawler/internal/jobs"
)

// rejectKeywords mark titles that are definitely not entry level. Order
// matters: the first match wins and becomes the recorded reason.
var rejectKeywords = []string{
	"senior", "principal", "staff", "lead", "manager", "director", "vp",
	"head of", "architect", "sr.", "mgr", "ii", "iii", "iv",
}

type keywordMatcher struct {
	keyword string
	re      *regexp.Regexp
}

var matchers = compileMatchers()

func compileMatchers() []keywordMatcher {
	out := make([]keywordMatcher, 0, len(rejectKeywords))
	for _, kw := range rejectKeywords {
		out = append(out, keywordMatcher{keyword: kw, re: wholeWord(kw)})
	}
	return out
}

// wholeWord builds a whole-word pattern for kw. Boundary assertions are only
// valid next to word characters, so they are attached per end ("sr." must not
// demand a word character after the dot).
func wholeWord(kw string) *regexp.Regexp {
	pattern := regexp.QuoteMeta(kw)
	if isWordChar(kw[0]) {
		pattern = `\b` + pattern
	}
	if isWordChar(kw[len(kw)-1]) {
		pattern += `\b`
	}
	return regexp.MustCompile(pattern)
}

func isWordChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// Matcher applies the reject-keyword heuristic to posting titles. It is
// deterministic and performs no I/O.
type Matcher struct{}

// New returns a Matcher.
func New() *Matcher {
	return &Matcher{}
}

// Reject reports whether the title matches a reject keyword as a whole word
// and, if so, which keyword matched.
func (Matcher) Reject(title string) (string, bool) {
	lower := strings.ToLower(title)
	for _, m := range matchers {
		if m.re.MatchString(lower) {
			return m.keyword, true
		}
	}
	return "", false
}

// Filter applies the heuristic to a posting, mutating and returning it. On a
// match the posting is rejected, the reason recorded, and its analysis status
// set to skipped so downstream stages short-circuit.
func (m Matcher) Filter(p *jobs.Posting) *jobs.Posting {
	if keyword, ok := m.Reject(p.Title); ok {
		p.PrefilterRejected = true
		p.PrefilterReason = fmt.Sprintf("title contains rejection keyword: %q", keyword)
		p.AnalysisStatus = jobs.AnalysisSkipped
	}
	return p
}
