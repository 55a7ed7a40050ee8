// Package queue provides the bounded multi-producer single-consumer
// handoff between ingress threads and the matching loop. Producers
// never block: a full queue surfaces as ErrOverloaded and the caller
// decides what to do with it.
package queue

import (
	"errors"
	"sync"

	"anvil/domain/orderbook"
)

// ErrOverloaded is returned by TryEnqueue when the queue is full.
// Producers must surface it upstream, never retry transparently.
var ErrOverloaded = errors.New("ingress queue overloaded")

// ErrClosed is returned by TryEnqueue once draining has begun.
var ErrClosed = errors.New("ingress queue closed")

// Kind discriminates Command.
type Kind uint8

const (
	KindSubmit Kind = iota + 1
	KindCancel
	KindDepth
)

// Submission is a validated order submission headed for the loop.
// No sequence yet; sequencing happens at dequeue.
type Submission struct {
	OrderID   string
	Market    string
	Side      orderbook.Side
	Price     uint64
	Size      uint64
	Timestamp uint64 // advisory client timestamp
	Principal string
	Nonce     string
}

// DepthReply answers a KindDepth command.
type DepthReply struct {
	Bids []orderbook.Level
	Asks []orderbook.Level
}

// Command is the unit carried by the queue. Cancels and depth queries
// ride the same queue as submissions so that the loop's dequeue order
// is the single total order over all operations.
type Command struct {
	Kind Kind

	Submission Submission // KindSubmit

	CancelOrderID   string // KindCancel
	CancelPrincipal string

	Depth      int              // KindDepth
	DepthReply chan<- DepthReply
}

// IngressQueue is a bounded MPSC channel. Successful enqueues from one
// producer dequeue in that producer's program order; no cross-producer
// order is promised — the loop's dequeue order is authoritative.
type IngressQueue struct {
	ch chan Command

	mu     sync.Mutex
	closed bool
}

// New creates a queue with the given capacity.
func New(capacity int) *IngressQueue {
	if capacity <= 0 {
		panic("queue: capacity must be positive")
	}
	return &IngressQueue{ch: make(chan Command, capacity)}
}

// TryEnqueue offers cmd without blocking. Returns ErrOverloaded when
// the queue is full and ErrClosed after Close.
func (q *IngressQueue) TryEnqueue(cmd Command) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	select {
	case q.ch <- cmd:
		q.mu.Unlock()
		return nil
	default:
		q.mu.Unlock()
		return ErrOverloaded
	}
}

// Dequeue blocks until a command is available. ok is false once the
// queue is closed and drained, which is the loop's signal to stop.
func (q *IngressQueue) Dequeue() (cmd Command, ok bool) {
	cmd, ok = <-q.ch
	return cmd, ok
}

// Close stops admission. Commands already enqueued are still
// delivered; Dequeue reports ok=false after the last one.
func (q *IngressQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// Len returns the number of queued commands.
func (q *IngressQueue) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *IngressQueue) Cap() int { return cap(q.ch) }
