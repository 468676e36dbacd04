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


package storage

import "errors"

var (
	// ErrInvalidTransition indicates a task status change that the state
	// machine does not allow from the task's current status.
	ErrInvalidTransition = errors.New("invalid task status transition")

	// ErrStorageClosed is returned by a graph backend after Close.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrInvalidQuery indicates arguments a store cannot act on, such as an
	// empty database path or a content item with two sources.
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")
)
