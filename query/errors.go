package query

import "errors"

var (
	// ErrStoreRequired is returned when a content store is not provided.
	ErrStoreRequired = errors.New("content store required")

	// ErrCacheRequired is returned when an engine cache is not provided.
	ErrCacheRequired = errors.New("engine cache required")

	// ErrCompleterRequired is returned when a completer is not provided.
	ErrCompleterRequired = errors.New("completer required")

	// ErrBudgeterRequired is returned when a token budgeter is not provided.
	ErrBudgeterRequired = errors.New("token budgeter required")

	// ErrNoContent is returned when a context-mode topic has nothing to answer from.
	ErrNoContent = errors.New("topic has no content")

	// ErrContextBudgetExceeded is returned when even the oldest item does not
	// fit the context budget.
	ErrContextBudgetExceeded = errors.New("first content item exceeds the context budget")
)
