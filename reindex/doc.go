// Package reindex rebuilds a topic's knowledge graph from its stored
// content items.
//
// A rebuild resets the topic's graph directory and re-inserts every item in
// ingestion order. Inserts that fail with a retryable error are retried with
// exponential backoff; items that still fail are reported and skipped so one
// bad item does not abandon the rest of the topic.
//
// Basic usage:
//
//	rb, err := reindex.NewRebuilder(store, cache,
//	    reindex.WithProgress(os.Stderr, 10),
//	)
//	report, err := rb.Rebuild(ctx, topicID)
package reindex
