// Package budget counts tokens and selects content under a token budget.
//
// Selection is a greedy prefix: items are taken in order while the running
// total stays within the budget, and selection stops at the first item that
// would exceed it. Items are never truncated and later, smaller items are
// never pulled forward.
package budget
