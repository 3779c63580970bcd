package analyzer

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

// Mock is a deterministic offline provider. The value is the page text
// itself and the confidence is derived from the subject, so reruns over
// the same inputs produce identical facts.
type Mock struct{}

// NewMock returns the offline provider.
func NewMock() *Mock { return &Mock{} }

func (m *Mock) Name() string    { return "mock" }
func (m *Mock) ModelID() string { return "mock" }

// Analyze echoes the text as the fact value with a confidence in
// [0.6, 0.95] computed from the subject.
func (m *Mock) Analyze(_ context.Context, text string, s Subject) (*Result, error) {
	return &Result{
		Value:      strings.TrimSpace(text),
		Confidence: mockConfidence(s),
	}, nil
}

// Generate produces a fixed-form reply so downstream formatting is testable
// without API access.
func (m *Mock) Generate(_ context.Context, prompt string) (string, error) {
	return fmt.Sprintf("Mock response: %s", firstLine(prompt)), nil
}

func mockConfidence(s Subject) float64 {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s/%s/%s", s.Competitor, s.Product, s.Criterion)
	// Spread across [0.6, 0.95).
	return 0.6 + float64(h.Sum32()%3500)/10000
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
