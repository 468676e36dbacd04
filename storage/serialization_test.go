package storage

import (
	"testing"

	"github.com/poiesic/studyforge/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"max ID", core.ID(18446744073709551615)},
		{"content-based ID", core.IDFromContent("test content")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := UnmarshalID(MarshalID(tt.id))
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestMarshalRecord_Deterministic(t *testing.T) {
	chunk := &core.Chunk{
		ID:         core.ChunkID("doc", 0),
		DocumentID: "doc",
		Text:       "Paris is the capital of France.",
		Vector:     []float32{0.5, 0.25},
		EntityIDs:  []core.ID{core.EntityID("paris"), core.EntityID("france")},
	}
	a, err := MarshalRecord(chunk)
	require.NoError(t, err)
	b, err := MarshalRecord(chunk)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	decoded, err := UnmarshalRecord[core.Chunk](a)
	require.NoError(t, err)
	assert.Equal(t, chunk, decoded)
}

func TestUnmarshalRecord_Invalid(t *testing.T) {
	_, err := UnmarshalRecord[core.Entity]([]byte{0xff, 0x00})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}
