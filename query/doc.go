// Package query answers questions about a study topic.
//
// The Router reads the topic once and resolves it to a strategy:
//
//   - GraphStrategy asks the topic's graph engine, taken from the engine
//     cache, with the requested retrieval mode
//   - ContextStrategy places the topic's content, oldest first and cut to a
//     token budget by whole items, into a prompt for the completion model
//
// Either way the caller gets an Envelope naming the method used and the time
// spent in it. There is no fallback from one strategy to the other.
package query
