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


// Package storage provides the storage abstraction layer for studyforge.
//
// Two backends live under this package:
//
//   - storage/sqlite: the Content Store holding topics, content items and
//     task records with relational semantics
//   - storage/badger: the per-topic key-value store backing a knowledge graph
//
// Store describes the Content Store. GraphRepository describes one topic's
// graph; the graph engine opens one per topic directory. Graph records are
// encoded with CBOR by MarshalRecord.
//
// # Error Conventions
//
// Lookups of unknown ids return a *core.NotFoundError. Other backend failures
// are returned as *core.StorageError so callers can tell "fix your input"
// from "storage is unhealthy". Task status changes that the state machine
// forbids return ErrInvalidTransition.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
