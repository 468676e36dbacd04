package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float32 {
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}

func TestMockEmbedder_SimilarTextsScoreHigher(t *testing.T) {
	e := NewMockEmbedder()
	ctx := context.Background()

	question, err := e.EmbedText(ctx, "What is the capital of France?")
	require.NoError(t, err)
	vectors, err := e.EmbedTexts(ctx, []string{
		"Paris is the capital of France.",
		"Tokyo is the capital of Japan.",
	})
	require.NoError(t, err)

	assert.Greater(t, cosine(question, vectors[0]), cosine(question, vectors[1]))
	assert.Equal(t, 2, e.CallCount())
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder()
	a, _ := e.EmbedText(context.Background(), "mitochondria")
	b, _ := e.EmbedText(context.Background(), "mitochondria")
	assert.Equal(t, a, b)
	assert.Len(t, a, Dimensions)
}

func TestMockConceptExtractor(t *testing.T) {
	x := NewMockConceptExtractor()
	concepts, err := x.ExtractConcepts(context.Background(), "Paris is the capital of France. Paris!")
	require.NoError(t, err)

	names := make([]string, len(concepts))
	for i, c := range concepts {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"paris", "capital", "france"}, names)
	assert.Equal(t, 10, concepts[0].Importance)
}

func TestMockCompleter_Echo(t *testing.T) {
	c := NewMockCompleter()
	answer, err := c.Complete(context.Background(), "sys", "prompt text")
	require.NoError(t, err)
	assert.Equal(t, "prompt text", answer)

	system, prompt := c.LastRequest()
	assert.Equal(t, "sys", system)
	assert.Equal(t, "prompt text", prompt)
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider()
	_, err := p.Completer().Complete(context.Background(), "", "x")
	require.NoError(t, err)
	assert.Equal(t, 1, p.MockCompleter().CallCount())
	assert.NoError(t, p.Close())
}
