package mock

import "github.com/poiesic/studyforge/ai"

// MockProvider is a test double for ai.AIProvider.
type MockProvider struct {
	embedder  *MockEmbedder
	extractor *MockConceptExtractor
	completer *MockCompleter
	describer *MockImageDescriber
}

// NewMockProvider creates a mock provider with default mock services.
//
// Returns *MockProvider so tests can reach the concrete mocks; it satisfies
// ai.AIProvider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		embedder:  NewMockEmbedder(),
		extractor: NewMockConceptExtractor(),
		completer: NewMockCompleter(),
		describer: NewMockImageDescriber(),
	}
}

var _ ai.AIProvider = (*MockProvider)(nil)

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder { return p.embedder }

// ConceptExtractor returns the mock concept extractor.
func (p *MockProvider) ConceptExtractor() ai.ConceptExtractor { return p.extractor }

// Completer returns the mock completer.
func (p *MockProvider) Completer() ai.Completer { return p.completer }

// ImageDescriber returns the mock image describer.
func (p *MockProvider) ImageDescriber() ai.ImageDescriber { return p.describer }

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error { return nil }

// MockEmbedder returns the underlying embedder for assertions.
func (p *MockProvider) MockEmbedder() *MockEmbedder { return p.embedder }

// MockExtractor returns the underlying extractor for assertions.
func (p *MockProvider) MockExtractor() *MockConceptExtractor { return p.extractor }

// MockCompleter returns the underlying completer for assertions.
func (p *MockProvider) MockCompleter() *MockCompleter { return p.completer }

// MockImageDescriber returns the underlying describer for assertions.
func (p *MockProvider) MockImageDescriber() *MockImageDescriber { return p.describer }
