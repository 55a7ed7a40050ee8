// Package ring provides the bounded single-producer single-consumer
// event buffer between the matching loop and the event writer.
package ring

import (
	"runtime"
	"sync/atomic"
	"time"

	"anvil/domain/event"
)

const (
	// spins before the publisher or consumer starts yielding.
	spinLimit = 1024
	// yields before falling back to sleeping.
	yieldLimit = 64
	parkSleep  = 50 * time.Microsecond
)

// EventRing is a lock-free SPSC ring of events. Exactly one goroutine
// publishes (the matching loop) and exactly one consumes (the event
// writer). head and tail sit on separate cache lines.
type EventRing struct {
	head   uint64 // next write position, owned by the producer
	_pad1  [56]byte
	tail   uint64 // next read position, owned by the consumer
	_pad2  [56]byte
	buf    []event.Event
	mask   uint64
	closed atomic.Bool
}

// New allocates a ring with power-of-two capacity. All slots are
// pre-allocated; publishing copies by value and never allocates.
func New(capacity uint64) *EventRing {
	if capacity == 0 || capacity&(capacity-1) != 0 {
		panic("ring: capacity must be a power of two")
	}
	return &EventRing{
		buf:  make([]event.Event, capacity),
		mask: capacity - 1,
	}
}

// TryPublish appends ev if there is space. Returns false when full.
func (r *EventRing) TryPublish(ev event.Event) bool {
	h := atomic.LoadUint64(&r.head)
	t := atomic.LoadUint64(&r.tail)
	if h-t == uint64(len(r.buf)) {
		return false
	}
	r.buf[h&r.mask] = ev
	atomic.StoreUint64(&r.head, h+1)
	return true
}

// Publish appends ev, blocking while the ring is full. Blocking here
// is the backpressure path: a saturated downstream stalls the
// matching loop rather than losing events. Spin first, then yield,
// then park.
func (r *EventRing) Publish(ev event.Event) {
	for i := 0; ; i++ {
		if r.TryPublish(ev) {
			return
		}
		switch {
		case i < spinLimit:
			// spin
		case i < spinLimit+yieldLimit:
			runtime.Gosched()
		default:
			time.Sleep(parkSleep)
		}
	}
}

// TryConsume pops the oldest event. Returns false when empty.
func (r *EventRing) TryConsume() (event.Event, bool) {
	t := atomic.LoadUint64(&r.tail)
	h := atomic.LoadUint64(&r.head)
	if t == h {
		return event.Event{}, false
	}
	ev := r.buf[t&r.mask]
	atomic.StoreUint64(&r.tail, t+1)
	return ev, true
}

// Consume pops the oldest event, blocking while the ring is empty.
// ok is false once the ring is closed and fully drained.
func (r *EventRing) Consume() (event.Event, bool) {
	for i := 0; ; i++ {
		if ev, ok := r.TryConsume(); ok {
			return ev, true
		}
		if r.closed.Load() {
			// closed: one more check catches events published
			// before the close.
			if ev, ok := r.TryConsume(); ok {
				return ev, true
			}
			return event.Event{}, false
		}
		switch {
		case i < spinLimit:
			// spin
		case i < spinLimit+yieldLimit:
			runtime.Gosched()
		default:
			time.Sleep(parkSleep)
		}
	}
}

// Drain pops up to len(out) events without blocking and returns the
// count. Batch reads keep the writer's per-event overhead down.
func (r *EventRing) Drain(out []event.Event) int {
	t := atomic.LoadUint64(&r.tail)
	h := atomic.LoadUint64(&r.head)
	available := h - t
	if available == 0 {
		return 0
	}
	n := uint64(len(out))
	if available < n {
		n = available
	}
	for i := uint64(0); i < n; i++ {
		out[i] = r.buf[(t+i)&r.mask]
	}
	atomic.StoreUint64(&r.tail, t+n)
	return int(n)
}

// Close marks the producer done. Only the producer calls this, after
// its final Publish.
func (r *EventRing) Close() { r.closed.Store(true) }

// Closed reports whether the producer is done.
func (r *EventRing) Closed() bool { return r.closed.Load() }

// Len returns the number of buffered events.
func (r *EventRing) Len() int {
	h := atomic.LoadUint64(&r.head)
	t := atomic.LoadUint64(&r.tail)
	return int(h - t)
}

// Cap returns the ring capacity.
func (r *EventRing) Cap() int { return len(r.buf) }
