// Package enrich classifies postings for entry-level fit using an AI model
// behind a shared rate limiter.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/entrylevelhq/jobcrawler/internal/jobs"
)

const classifyPromptTemplate = `You are screening job postings for entry-level candidates.

Analyze the following job posting and decide whether it is suitable for a
candidate with no prior professional experience.

Job title: %s

Job description:
%s

Respond with a JSON object with exactly these fields:
- "is_entry_level": boolean, true if a candidate with no professional experience could reasonably be hired
- "confidence": integer 0-100, how confident you are
- "min_years_experience": integer, the minimum years of experience the posting requires (0 if none)
- "reasoning": string, one or two sentences explaining the decision`

// GeminiClassifier implements jobs.Classifier on the Gemini API with JSON
// response formatting.
type GeminiClassifier struct {
	client *genai.Client
	model  string
}

// NewGeminiClassifier dials the Gemini API. Close must be called when done.
func NewGeminiClassifier(ctx context.Context, apiKey, model string) (*GeminiClassifier, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("dial gemini: %w", err)
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiClassifier{client: client, model: model}, nil
}

// Classify sends one posting to the model and parses the structured verdict.
func (g *GeminiClassifier) Classify(ctx context.Context, title, description string) (jobs.Classification, error) {
	model := g.client.GenerativeModel(g.model)
	model.ResponseMIMEType = "application/json"

	prompt := fmt.Sprintf(classifyPromptTemplate, title, description)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return jobs.Classification{}, fmt.Errorf("generate content: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return jobs.Classification{}, err
	}

	var c jobs.Classification
	if err := json.Unmarshal([]byte(text), &c); err != nil {
		return jobs.Classification{}, fmt.Errorf("parse classification: %w", err)
	}
	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 100 {
		c.Confidence = 100
	}
	return c, nil
}

// Close releases the underlying API client.
func (g *GeminiClassifier) Close() error {
	return g.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty model response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("model response has no text parts")
	}
	return out, nil
}
