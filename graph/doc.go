// Package graph provides the per-topic knowledge graph engine and the cache
// that shares one engine per topic across ingestion and queries.
//
// A topic's graph lives in its own badger directory, TopicDir(ragDir, id).
// Documents are split into chunks, the concepts each chunk mentions become
// entities, and entities are linked to their chunks and to each other by
// co-occurrence. Queries retrieve chunks in one of four modes:
//
//   - naive: vector similarity between the question and the chunks
//   - local: chunks mentioning the entities named in the question
//   - global: chunks reached through the neighbourhood of those entities
//   - hybrid: a scored union of the above
//
// The retrieved chunks are fitted to a token budget and handed to an
// ai.Completer, which writes the answer.
//
// Cache hands out Handles. A Handle serializes inserts and deletes on its
// topic while letting queries run concurrently.
package graph
