package graph

import (
	"context"
	"path/filepath"

	"github.com/poiesic/studyforge/core"
)

// NoContextAnswer is returned when retrieval finds nothing to answer from.
const NoContextAnswer = "I could not find anything in this topic's material to answer that question."

// Document is a unit of text inserted into a topic graph.
type Document struct {
	ID    string
	Title string
	Text  string
}

// Engine is a topic's knowledge graph.
// Callers serialize Insert and Delete; Query may run concurrently with
// other queries.
type Engine interface {
	// Insert indexes doc. Re-inserting an ID replaces the previous version.
	Insert(ctx context.Context, doc Document) error

	// Delete removes everything doc id contributed. Unknown ids are a no-op.
	Delete(ctx context.Context, id string) error

	// Query answers question from the graph using mode.
	Query(ctx context.Context, question string, mode core.QueryMode) (string, error)

	// Close releases the engine's storage.
	Close() error
}

// Factory builds the engine for a topic stored in dir.
type Factory func(ctx context.Context, topicID, dir string) (Engine, error)

// TopicDir returns the storage directory for a topic's graph.
func TopicDir(ragDir, topicID string) string {
	return filepath.Join(ragDir, "topic_"+topicID)
}
