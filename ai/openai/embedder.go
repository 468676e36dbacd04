package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/studyforge/ai"
	"github.com/poiesic/studyforge/core"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// embedBatchSize is the most texts sent in one embedding request.
const embedBatchSize = 64

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
type Embedder struct {
	embedder embeddings.Embedder
	logger   *slog.Logger
}

func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(config.APIKey),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(embedBatchSize),
	)
	if err != nil {
		return nil, err
	}
	return newEmbedderWith(embedder), nil
}

// newEmbedderWith wraps an existing langchaingo embedder, used by tests.
func newEmbedderWith(embedder embeddings.Embedder) *Embedder {
	return &Embedder{
		embedder: embedder,
		logger:   slog.Default().With("component", "openai-embedder"),
	}
}

// EmbedText embeds a single text, typically a question.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		e.logger.Error("failed to embed text", "length", len(text), "err", err)
		return nil, classifyError("embedding", err)
	}
	if len(vector) == 0 {
		return nil, core.NewExternalServiceError("embedding", core.ReasonUpstream, false,
			fmt.Errorf("empty embedding for %d byte text", len(text)))
	}
	return vector, nil
}

// EmbedTexts embeds chunks of material. The result has one vector per
// input, all of the same dimension.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	e.logger.Debug("embedding texts", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to embed texts", "count", len(texts), "err", err)
		return nil, classifyError("embedding", err)
	}
	if err := checkVectors(vectors, len(texts)); err != nil {
		return nil, core.NewExternalServiceError("embedding", core.ReasonUpstream, false, err)
	}
	return vectors, nil
}

func checkVectors(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("got %d embeddings for %d texts", len(vectors), want)
	}
	for i, v := range vectors {
		if len(v) == 0 || len(v) != len(vectors[0]) {
			return fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), len(vectors[0]))
		}
	}
	return nil
}
