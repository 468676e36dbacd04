package reindex

import "errors"

var (
	// ErrStoreRequired is returned when a content store is not provided.
	ErrStoreRequired = errors.New("content store required")

	// ErrCacheRequired is returned when a graph cache is not provided.
	ErrCacheRequired = errors.New("graph cache required")

	// ErrGraphDisabled is returned when rebuilding a topic that does not
	// use the knowledge graph.
	ErrGraphDisabled = errors.New("topic does not use the knowledge graph")

	// ErrInvalidMaxAttempts is returned when maxAttempts is not positive.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)
