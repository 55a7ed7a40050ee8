// Package orderbook implements the per-market limit order book and
// the price-time priority matcher that operates on it.
//
// The book is plain single-writer state: price levels hang off two
// sorted skip-list indexes (bids, asks) with O(1) access to either
// end, and each level keeps its orders in an intrusive FIFO ordered
// by admission sequence. Only the matching
// goroutine mutates it. Matching is deterministic; no wall-clock time
// enters any decision made here.
package orderbook
