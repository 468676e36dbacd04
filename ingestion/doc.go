// Package ingestion runs content ingestion tasks off the request path.
//
// A Manager accepts submissions, records each one as a pending task in the
// content store and returns its id at once. A single dispatcher drains a
// FIFO queue into a bounded ants worker pool. Each task moves through
//
//	pending -> processing -> done | failed
//
// and the transition to done is committed in the same transaction as the new
// content item, so a failed task never leaves an item behind.
//
// Shutdown cancels running tasks, waits up to a deadline and records anything
// still unfinished as interrupted. Reconcile does the same at startup for
// tasks a previous process left behind.
package ingestion
