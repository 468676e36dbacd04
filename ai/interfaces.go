package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ConceptExtractor extracts named entities and concepts from text.
// Implementations must be thread-safe for concurrent use.
type ConceptExtractor interface {
	// ExtractConcepts analyzes text and extracts key concepts with their types
	// and importance scores.
	// Returns an empty slice if no concepts are found.
	ExtractConcepts(ctx context.Context, text string) ([]ExtractedConcept, error)
}

// ExtractedConcept represents a semantic concept identified in text.
type ExtractedConcept struct {
	// Name is the concept identifier in lowercase, 1-4 words, singular form.
	// Example: "photosynthesis", "french revolution"
	Name string

	// Type categorizes the concept. Must match one of ConceptTypes.
	Type string

	// Importance is a score from 1-10 indicating how central this concept
	// is to understanding the text.
	Importance int
}

// Completer answers prompts with a chat model.
// Implementations must be thread-safe for concurrent use.
type Completer interface {
	// Complete sends an optional system instruction and a user prompt and
	// returns the model's answer text. Failures are returned as
	// *core.ExternalServiceError carrying the upstream reason.
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// ImageDescriber turns an image into descriptive text.
type ImageDescriber interface {
	// DescribeImage returns a textual interpretation of image guided by prompt.
	DescribeImage(ctx context.Context, mimeType string, image []byte, prompt string) (string, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// ConceptExtractor returns the concept extraction service.
	ConceptExtractor() ConceptExtractor

	// Completer returns the answer-generation service.
	Completer() Completer

	// ImageDescriber returns the image interpretation service.
	ImageDescriber() ImageDescriber

	// Close releases resources held by the provider and its services.
	Close() error
}
