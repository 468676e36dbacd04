package storage

import (
	"context"
	"time"

	"github.com/poiesic/studyforge/core"
)

// Page bounds a listing query. A zero Limit means no limit.
type Page struct {
	Limit  int
	Offset int
}

// TopicRepository provides operations for managing study topics.
// Implementations must be thread-safe and support concurrent access.
type TopicRepository interface {
	// CreateTopic inserts a topic. ID and timestamps are generated when empty.
	CreateTopic(ctx context.Context, topic *core.Topic) (*core.Topic, error)

	// GetTopic retrieves a topic by ID.
	// Returns a core.NotFoundError if the topic doesn't exist.
	GetTopic(ctx context.Context, id string) (*core.Topic, error)

	// ListTopics lists topics newest first, with ContentCount populated.
	ListTopics(ctx context.Context, page Page) ([]*core.Topic, error)

	// UpdateTopic applies a partial update and bumps UpdatedAt.
	// Returns a core.NotFoundError if the topic doesn't exist.
	UpdateTopic(ctx context.Context, id string, update core.TopicUpdate) (*core.Topic, error)

	// DeleteTopic removes a topic and, by cascade, its content items.
	// Returns the file paths of the removed content items.
	DeleteTopic(ctx context.Context, id string) ([]string, error)

	// SaveSummary caches a generated summary on the topic row.
	SaveSummary(ctx context.Context, id, summary string, at time.Time) error

	// SaveMindmap caches a generated mindmap on the topic row.
	SaveMindmap(ctx context.Context, id, mindmap string, at time.Time) error

	// ClearDigests drops cached summary and mindmap for a topic.
	ClearDigests(ctx context.Context, id string) error
}

// ContentRepository provides operations for managing content items.
type ContentRepository interface {
	// GetContentItem retrieves a single content item by ID.
	// Returns a core.NotFoundError if the item doesn't exist.
	GetContentItem(ctx context.Context, id string) (*core.ContentItem, error)

	// ListContentItems lists a topic's items newest first.
	ListContentItems(ctx context.Context, topicID string, page Page) ([]*core.ContentItem, error)

	// ContentItemsInOrder returns all of a topic's items in creation order.
	ContentItemsInOrder(ctx context.Context, topicID string) ([]*core.ContentItem, error)

	// CountContentItems returns the number of items attached to a topic.
	CountContentItems(ctx context.Context, topicID string) (int, error)

	// DeleteContentItem removes an item and returns the removed record.
	DeleteContentItem(ctx context.Context, id string) (*core.ContentItem, error)
}

// TaskRepository provides operations for managing ingestion tasks.
type TaskRepository interface {
	// CreateTask inserts a pending task. ID and timestamps are generated when empty.
	CreateTask(ctx context.Context, task *core.Task) (*core.Task, error)

	// GetTask retrieves a task by ID.
	// Returns a core.NotFoundError if the task doesn't exist.
	GetTask(ctx context.Context, id string) (*core.Task, error)

	// MarkProcessing moves a pending task to processing.
	// Returns ErrInvalidTransition if the task is not pending.
	MarkProcessing(ctx context.Context, id string) error

	// CompleteTask inserts item and moves the task from processing to done
	// in one transaction. Returns ErrInvalidTransition, with nothing written,
	// if the task is no longer processing.
	CompleteTask(ctx context.Context, id string, item *core.ContentItem) error

	// FailTask moves a non-terminal task to failed.
	// Returns ErrInvalidTransition if the task is already terminal.
	FailTask(ctx context.Context, id string, taskErr *core.TaskError) error

	// FailUnfinishedTasks fails every pending or processing task and returns
	// how many were changed. Used for startup reconciliation.
	FailUnfinishedTasks(ctx context.Context, taskErr *core.TaskError) (int, error)

	// PruneTasks deletes terminal tasks last updated before cutoff.
	PruneTasks(ctx context.Context, cutoff time.Time) (int, error)
}

// Store aggregates all Content Store repositories.
type Store interface {
	TopicRepository
	ContentRepository
	TaskRepository

	// Close closes the storage backend and releases resources.
	Close() error
}

// GraphRepository persists one topic's knowledge graph: chunks with their
// vectors, entities, entity-to-chunk links and entity co-occurrence.
// Implementations must be thread-safe.
type GraphRepository interface {
	// PutDocument stores a document's chunks and entities and updates the
	// links atomically. Re-putting an existing document ID replaces it.
	PutDocument(ctx context.Context, doc *core.GraphDocument, chunks []*core.Chunk, entities []*core.Entity) error

	// DeleteDocument removes a document and every chunk it contributed.
	// Entities left without chunks are removed. Deleting an unknown document
	// is a no-op.
	DeleteDocument(ctx context.Context, id string) error

	// HasDocument reports whether a document is stored.
	HasDocument(ctx context.Context, id string) (bool, error)

	// FindSimilarChunks returns up to limit chunks scoring at least
	// minSimilarity against vector, best first.
	FindSimilarChunks(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.ScoredChunk, error)

	// ChunksForEntities returns the chunks linked to any of the entities,
	// each chunk once.
	ChunksForEntities(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error)

	// GetEntities returns the entities found among ids, skipping missing ones.
	GetEntities(ctx context.Context, ids ...core.ID) ([]*core.Entity, error)

	// Neighbors returns up to limit entities co-occurring with id, heaviest first.
	Neighbors(ctx context.Context, id core.ID, limit int) ([]core.Neighbor, error)

	// Stats counts documents, chunks and entities.
	Stats(ctx context.Context) (core.GraphStats, error)

	// Close releases the repository.
	Close() error
}
