// Package digest generates and caches per-topic study digests: a written
// summary and a Mermaid mindmap.
//
// Digests are cached on the topic row and reused until content changes or
// the caller asks for a refresh. Concurrent requests for the same digest
// share a single model call.
package digest
