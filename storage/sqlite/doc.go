// Package sqlite implements the studyforge Content Store on SQLite.
//
// It uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. A single Store satisfies storage.Store:
//
//   - study_topics: topics plus cached summary and mindmap digests
//   - content_items: extracted text, cascading on topic deletion
//   - tasks: ingestion task lifecycle records
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory and tracked in schema_migrations.
//
// # Task Transitions
//
// Status updates are guarded in SQL so a task can only move
// pending -> processing -> done|failed. CompleteTask writes the content item
// and the done status in the same transaction, so a completion racing a
// forced failure leaves no content item behind.
//
// # Thread Safety
//
// All operations are thread-safe. The store relies on SQLite WAL mode with
// immediate write transactions and a busy timeout.
package sqlite
