package ingestion

import "errors"

var (
	// ErrStoreRequired is returned when a content store is not provided.
	ErrStoreRequired = errors.New("content store required")

	// ErrExtractorRequired is returned when an extractor registry is not provided.
	ErrExtractorRequired = errors.New("extractor required")

	// ErrCacheRequired is returned when an engine cache is not provided.
	ErrCacheRequired = errors.New("engine cache required")

	// ErrBudgeterRequired is returned when a token budgeter is not provided.
	ErrBudgeterRequired = errors.New("token budgeter required")

	// ErrManagerClosed is returned by Submit after Shutdown has started.
	ErrManagerClosed = errors.New("task manager is shut down")

	// ErrShutdownTimeout is returned by Shutdown when running tasks did not
	// stop before the deadline. Those tasks are recorded as interrupted.
	ErrShutdownTimeout = errors.New("shutdown timed out waiting for running tasks")

	// ErrTaskPanicked wraps a panic recovered from a task.
	ErrTaskPanicked = errors.New("task panicked")

	// errShuttingDown is the cancellation cause for task contexts ended by Shutdown.
	errShuttingDown = errors.New("task manager shutting down")
)
