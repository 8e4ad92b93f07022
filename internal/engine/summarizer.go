package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/quillworks/quill/internal/provider"
)

// Summarizer condenses document text during token-limit recovery.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// summaryInstruction frames the condensation request sent to the model.
const summaryInstruction = "Condense the following story text into a concise synopsis. " +
	"Preserve plot developments, character names, and tone. " +
	"Reply with the synopsis only.\n\n"

// summaryMaxTokens bounds the reply budget for summarize calls.
const summaryMaxTokens = 1000

// ProviderSummarizer produces summaries through the provider aggregator,
// using the summary role with fallback to the prose provider.
type ProviderSummarizer struct {
	agg *provider.Aggregator
}

// NewProviderSummarizer creates a summarizer backed by the aggregator.
func NewProviderSummarizer(agg *provider.Aggregator) *ProviderSummarizer {
	return &ProviderSummarizer{agg: agg}
}

// Summarize condenses text into a synopsis.
func (s *ProviderSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	out, err := s.agg.Complete(ctx, provider.RoleSummary, provider.Request{
		Prompt: summaryInstruction + text,
		Params: provider.Params{MaxTokens: summaryMaxTokens},
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Interface guard.
var _ Summarizer = (*ProviderSummarizer)(nil)
