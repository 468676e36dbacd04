package graph

import (
	"errors"
	"fmt"

	"github.com/poiesic/studyforge/core"
)

var (
	// ErrRepositoryRequired is returned when a graph repository is not provided.
	ErrRepositoryRequired = errors.New("graph repository required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrBudgeterRequired is returned when a token budgeter is not provided.
	ErrBudgeterRequired = errors.New("budgeter required")

	// ErrFactoryRequired is returned when a cache is built without an engine factory.
	ErrFactoryRequired = errors.New("engine factory required")

	// ErrCacheClosed is returned by a cache after Close.
	ErrCacheClosed = errors.New("engine cache closed")

	// ErrEngineClosed is returned by a handle whose engine was invalidated.
	ErrEngineClosed = errors.New("engine closed")

	// ErrEmptyDocument is returned when a document has no text to index.
	ErrEmptyDocument = errors.New("document has no text")
)

// engineError reports a failure of the graph's own persistence. It is a
// graph engine failure and must not read as a Content Store error.
func engineError(op string, err error) error {
	return core.NewExternalServiceError("graph engine", core.ReasonUnavailable, false, fmt.Errorf("%s: %w", op, err))
}
