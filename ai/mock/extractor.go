package mock

import (
	"context"
	"sync/atomic"

	"github.com/poiesic/studyforge/ai"
)

// MockConceptExtractor is a test double for ai.ConceptExtractor.
type MockConceptExtractor struct {
	// ExtractConceptsFunc is called by ExtractConcepts if set.
	ExtractConceptsFunc func(ctx context.Context, text string) ([]ai.ExtractedConcept, error)

	// MaxConcepts caps the default extraction. Zero means 8.
	MaxConcepts int

	calls atomic.Int64
}

// NewMockConceptExtractor creates a mock concept extractor with default behavior.
func NewMockConceptExtractor() *MockConceptExtractor {
	return &MockConceptExtractor{}
}

// ExtractConcepts turns the distinct content words of text into concepts,
// most important first.
func (m *MockConceptExtractor) ExtractConcepts(ctx context.Context, text string) ([]ai.ExtractedConcept, error) {
	m.calls.Add(1)
	if m.ExtractConceptsFunc != nil {
		return m.ExtractConceptsFunc(ctx, text)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit := m.MaxConcepts
	if limit <= 0 {
		limit = 8
	}
	seen := make(map[string]bool)
	concepts := make([]ai.ExtractedConcept, 0, limit)
	importance := 10
	for _, word := range contentWords(text) {
		if len(concepts) == limit {
			break
		}
		if seen[word] || len(word) < 3 {
			continue
		}
		seen[word] = true
		concepts = append(concepts, ai.ExtractedConcept{
			Name:       word,
			Type:       "term",
			Importance: importance,
		})
		if importance > 1 {
			importance--
		}
	}
	return concepts, nil
}

// CallCount returns the number of times ExtractConcepts was called.
func (m *MockConceptExtractor) CallCount() int {
	return int(m.calls.Load())
}

// Reset clears the call count.
func (m *MockConceptExtractor) Reset() {
	m.calls.Store(0)
}
