package core

import "strconv"

// Chunk is a slice of an ingested document stored in a topic's knowledge graph.
type Chunk struct {
	ID         ID
	DocumentID string
	Index      int
	Text       string
	Vector     []float32
	EntityIDs  []ID
}

// Entity is a named concept linked to the chunks that mention it.
type Entity struct {
	ID         ID
	Name       string
	Type       string
	Importance int
	Mentions   int
}

// EntityID derives the graph identifier for an entity name. Names are
// matched case-insensitively by callers normalizing before the call.
func EntityID(name string) ID {
	return IDFromContent("entity:" + name)
}

// ChunkID derives the graph identifier for the index-th chunk of a document.
func ChunkID(documentID string, index int) ID {
	return IDFromContent("chunk:" + documentID + ":" + strconv.Itoa(index))
}

// GraphDocument records which chunks and entities one ingested document
// contributed, so the document can be removed later.
type GraphDocument struct {
	ID        string
	Title     string
	ChunkIDs  []ID
	EntityIDs []ID
}

// ScoredChunk pairs a chunk with its relevance for a query.
type ScoredChunk struct {
	Chunk *Chunk
	Score float32
}

// Neighbor is an entity co-occurring with another, weighted by the number
// of chunks they share.
type Neighbor struct {
	EntityID ID
	Weight   int
}

// GraphStats summarizes a topic graph.
type GraphStats struct {
	Documents int
	Chunks    int
	Entities  int
}
