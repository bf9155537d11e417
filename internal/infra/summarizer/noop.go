// Package summarizer provides AI-powered text summarization implementations.
package summarizer

import (
	"context"
)

// NoOp is a summarizer that returns the original text without modification.
// This is useful for testing and development when summarization is not needed.
type NoOp struct{}

// NewNoOp creates a new NoOp summarizer.
func NewNoOp() *NoOp {
	return &NoOp{}
}

// Summarize returns the original text truncated to a reasonable length,
// used when no AI credentials are configured (spec.md §4.10 step 10: a
// missing-credentials run still ends the item in status done, not failed).
func (n *NoOp) Summarize(_ context.Context, articleText string) (string, string, error) {
	const maxLength = 500
	summary := articleText
	if len(summary) > maxLength {
		summary = summary[:maxLength] + "..."
	}
	return summary, metaDescription(summary), nil
}
