package graph

import (
	"log/slog"

	"github.com/poiesic/studyforge/core"
)

// Monitor observes the stages of a graph query.
type Monitor interface {
	Start(question string, mode core.QueryMode)
	AfterSemanticSearch(hits []*core.ScoredChunk)
	AfterEntityMatch(entities []*core.Entity)
	AfterNeighborhood(neighbors []core.Neighbor)
	Finish(chunks []*core.ScoredChunk)
}

type noopMonitor struct{}

var _ Monitor = noopMonitor{}

func (noopMonitor) Start(string, core.QueryMode)             {}
func (noopMonitor) AfterSemanticSearch([]*core.ScoredChunk) {}
func (noopMonitor) AfterEntityMatch([]*core.Entity)         {}
func (noopMonitor) AfterNeighborhood([]core.Neighbor)       {}
func (noopMonitor) Finish([]*core.ScoredChunk)              {}

// LogMonitor reports each stage at info level.
type LogMonitor struct {
	Logger *slog.Logger
}

var _ Monitor = (*LogMonitor)(nil)

func (m *LogMonitor) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

func (m *LogMonitor) Start(question string, mode core.QueryMode) {
	m.logger().Info("graph query", "mode", mode, "question", question)
}

func (m *LogMonitor) AfterSemanticSearch(hits []*core.ScoredChunk) {
	m.logger().Info("semantic search", "hits", len(hits))
}

func (m *LogMonitor) AfterEntityMatch(entities []*core.Entity) {
	names := make([]string, len(entities))
	for i, e := range entities {
		names[i] = e.Name
	}
	m.logger().Info("matched entities", "entities", names)
}

func (m *LogMonitor) AfterNeighborhood(neighbors []core.Neighbor) {
	m.logger().Info("entity neighbourhood", "neighbors", len(neighbors))
}

func (m *LogMonitor) Finish(chunks []*core.ScoredChunk) {
	for i, c := range chunks {
		m.logger().Info("retrieved chunk", "rank", i+1, "score", c.Score,
			"document_id", c.Chunk.DocumentID, "index", c.Chunk.Index)
	}
}
