package badger

import (
	"encoding/binary"

	"github.com/poiesic/studyforge/core"
)

const (
	documentPrefix    = "doc:"
	chunkPrefix       = "chk:"
	entityPrefix      = "ent:"
	entityChunkPrefix = "ech:"
	cooccurPrefix     = "coo:"
)

// makeDocumentKey generates a key for a graph document by ID.
func makeDocumentKey(id string) []byte {
	return append([]byte(documentPrefix), id...)
}

// makeChunkKey generates a key for a chunk by ID.
func makeChunkKey(id core.ID) []byte {
	return appendID([]byte(chunkPrefix), id)
}

// makeEntityKey generates a key for an entity by ID.
func makeEntityKey(id core.ID) []byte {
	return appendID([]byte(entityPrefix), id)
}

// makeEntityChunkKey links an entity to a chunk mentioning it.
// Format: prefix:entityID:chunkID
func makeEntityChunkKey(entityID, chunkID core.ID) []byte {
	return appendID(makePartialEntityChunkKey(entityID), chunkID)
}

// makePartialEntityChunkKey generates the prefix for an entity's chunk links.
func makePartialEntityChunkKey(entityID core.ID) []byte {
	return appendID([]byte(entityChunkPrefix), entityID)
}

// makeCooccurKey generates the directed co-occurrence key from a to b.
// Format: prefix:a:b
func makeCooccurKey(a, b core.ID) []byte {
	return appendID(makePartialCooccurKey(a), b)
}

// makePartialCooccurKey generates the prefix for a's co-occurrence edges.
func makePartialCooccurKey(a core.ID) []byte {
	return appendID([]byte(cooccurPrefix), a)
}

// appendID writes id in BigEndian order so lexicographic sort works correctly.
func appendID(buf []byte, id core.ID) []byte {
	return binary.BigEndian.AppendUint64(buf, uint64(id))
}

// trailingID reads the ID stored in the last 8 bytes of key.
func trailingID(key []byte) core.ID {
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}
