package enrich

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/entrylevelhq/jobcrawler/internal/jobs"
	"github.com/entrylevelhq/jobcrawler/internal/ratelimit"
	"github.com/entrylevelhq/jobcrawler/internal/telemetry"
)

// maxDescriptionChars bounds the description text sent to the model so one
// oversized posting cannot blow the token budget. The cap counts characters,
// not bytes: cutting mid-rune would hand the API invalid UTF-8.
const maxDescriptionChars = 10000

func truncateChars(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// Analyzer enriches individual postings with an entry-level classification.
// Calls to the classifier pass through the shared rate limiter.
type Analyzer struct {
	classifier jobs.Classifier
	limiter    *ratelimit.Limiter
	logger     *zap.Logger
}

// NewAnalyzer wires a classifier behind the rate limiter.
func NewAnalyzer(classifier jobs.Classifier, limiter *ratelimit.Limiter, logger *zap.Logger) *Analyzer {
	return &Analyzer{classifier: classifier, limiter: limiter, logger: logger}
}

// Analyze classifies one posting in place. Postings without description text
// are marked failed without spending a model call. A classifier error marks
// the posting failed and is returned so the caller can count it; the posting
// itself stays usable.
func (a *Analyzer) Analyze(ctx context.Context, p *jobs.Posting) error {
	if p.RawDescriptionText == "" {
		p.AnalysisStatus = jobs.AnalysisFailed
		p.Reasoning = "missing description text"
		telemetry.ObserveEnrichment("failed")
		return fmt.Errorf("posting %s: missing description text", p.ExternalID)
	}

	description := truncateChars(p.RawDescriptionText, maxDescriptionChars)
	if len(description) < len(p.RawDescriptionText) {
		a.logger.Debug("description truncated",
			zap.String("external_id", p.ExternalID),
			zap.Int("original_len", len(p.RawDescriptionText)))
	}

	if err := a.limiter.Acquire(ctx); err != nil {
		p.AnalysisStatus = jobs.AnalysisFailed
		telemetry.ObserveEnrichment("failed")
		return fmt.Errorf("posting %s: rate limit wait: %w", p.ExternalID, err)
	}

	result, err := a.classifier.Classify(ctx, p.Title, description)
	if err != nil {
		p.AnalysisStatus = jobs.AnalysisFailed
		telemetry.ObserveEnrichment("failed")
		return fmt.Errorf("posting %s: classify: %w", p.ExternalID, err)
	}

	entryLevel := result.EntryLevel
	confidence := result.Confidence
	years := result.YearsRequired
	p.EntryLevel = &entryLevel
	p.Confidence = &confidence
	p.YearsRequired = &years
	p.Reasoning = result.Reasoning
	p.AnalysisStatus = jobs.AnalysisAnalyzed
	telemetry.ObserveEnrichment("analyzed")

	a.logger.Debug("posting classified",
		zap.String("external_id", p.ExternalID),
		zap.Bool("entry_level", entryLevel),
		zap.Int("confidence", confidence))
	return nil
}
