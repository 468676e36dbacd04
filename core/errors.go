// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for callers and for task records.
type ErrorKind string

const (
	ErrorKindInvalidInput    ErrorKind = "invalid_input"
	ErrorKindNotFound        ErrorKind = "not_found"
	ErrorKindExternalService ErrorKind = "external_service"
	ErrorKindStorage         ErrorKind = "storage"
	ErrorKindCancelled       ErrorKind = "cancelled"
	ErrorKindInterrupted     ErrorKind = "interrupted"
	ErrorKindInternal        ErrorKind = "internal"
)

// Domain validation errors
var (
	// ErrEmptyTopicName indicates a topic name is empty or blank.
	ErrEmptyTopicName = errors.New("topic name cannot be empty")

	// ErrEmptyQuestion indicates a question is empty or blank.
	ErrEmptyQuestion = errors.New("question cannot be empty")

	// ErrInvalidQueryMode indicates an unknown query mode.
	ErrInvalidQueryMode = errors.New("invalid query mode")

	// ErrInvalidContentType indicates an unknown content type.
	ErrInvalidContentType = errors.New("invalid content type")

	// ErrInvalidPayload indicates a payload is missing fields required by its kind.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrCancelled indicates a task's context was cancelled outside of shutdown.
	ErrCancelled = errors.New("cancelled")
)

// Reasons carried by ExternalServiceError.
const (
	ReasonRateLimited = "rate_limited"
	ReasonAuth        = "auth"
	ReasonTimeout     = "timeout"
	ReasonUnavailable = "unavailable"
	ReasonQueryFailed = "query_failed"
	ReasonUpstream    = "upstream"
	ReasonUnsupported = "unsupported"
)

// ValidationError reports bad input to a request.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Err.Error()
	}
	return fmt.Sprintf("validation: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError builds a ValidationError for field.
func NewValidationError(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// NotFoundError reports an unknown topic, task or content id.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// NewNotFoundError builds a NotFoundError.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ExternalServiceError reports a collaborator failure: extraction, LLM or
// graph engine. Retryable hints whether the same call may succeed later.
type ExternalServiceError struct {
	Service   string
	Reason    string
	Retryable bool
	Err       error
}

func (e *ExternalServiceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Service, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", e.Service, e.Reason, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// NewExternalServiceError builds an ExternalServiceError.
func NewExternalServiceError(service, reason string, retryable bool, err error) error {
	return &ExternalServiceError{Service: service, Reason: reason, Retryable: retryable, Err: err}
}

// StorageError reports a Content Store read or write failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err as a StorageError unless it already carries a
// more specific classification. Context errors pass through unchanged.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var nf *NotFoundError
	var se *StorageError
	if errors.As(err, &nf) || errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// InterruptedError reports a task aborted by shutdown.
type InterruptedError struct {
	Reason string
}

func (e *InterruptedError) Error() string {
	if e.Reason == "" {
		return "interrupted"
	}
	return "interrupted: " + e.Reason
}

// KindOf classifies err into an ErrorKind.
func KindOf(err error) ErrorKind {
	var (
		ve  *ValidationError
		nfe *NotFoundError
		ese *ExternalServiceError
		se  *StorageError
		ie  *InterruptedError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ie):
		return ErrorKindInterrupted
	case errors.As(err, &ve):
		return ErrorKindInvalidInput
	case errors.As(err, &nfe):
		return ErrorKindNotFound
	case errors.As(err, &ese):
		return ErrorKindExternalService
	case errors.As(err, &se):
		return ErrorKindStorage
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorKindCancelled
	default:
		return ErrorKindInternal
	}
}

// IsRetryable reports whether err carries a retryable hint.
func IsRetryable(err error) bool {
	var ese *ExternalServiceError
	if errors.As(err, &ese) {
		return ese.Retryable
	}
	return false
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// TaskErrorFrom converts err into the record stored on a failed task.
func TaskErrorFrom(err error) *TaskError {
	if err == nil {
		return nil
	}
	return &TaskError{
		Kind:      KindOf(err),
		Message:   err.Error(),
		Retryable: IsRetryable(err),
	}
}
