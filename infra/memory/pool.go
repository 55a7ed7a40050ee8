// Package memory provides pre-allocated object storage for the
// matching path. The book and its orders are single-owner state, so
// the pool is a plain free list: no locks, no GC pressure in the
// steady state.
package memory

import "anvil/domain/orderbook"

// OrderPool hands out Order values from a pre-allocated free list.
// Only the matching goroutine touches it. When the list runs dry the
// pool grows by a chunk; with a capacity sized to the book's working
// set that never happens after warmup.
type OrderPool struct {
	free      []*orderbook.Order
	chunk     int
	allocated int
}

// NewOrderPool pre-allocates capacity orders.
func NewOrderPool(capacity int) *OrderPool {
	if capacity <= 0 {
		panic("memory: pool capacity must be positive")
	}
	p := &OrderPool{
		free:  make([]*orderbook.Order, 0, capacity),
		chunk: capacity,
	}
	p.grow(capacity)
	return p
}

func (p *OrderPool) grow(n int) {
	block := make([]orderbook.Order, n)
	for i := range block {
		p.free = append(p.free, &block[i])
	}
	p.allocated += n
}

// Get returns a zeroed order.
func (p *OrderPool) Get() *orderbook.Order {
	if len(p.free) == 0 {
		p.grow(p.chunk)
	}
	o := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	return o
}

// Put recycles o. The caller must not retain the pointer.
func (p *OrderPool) Put(o *orderbook.Order) {
	*o = orderbook.Order{}
	p.free = append(p.free, o)
}

// Allocated returns the total number of orders ever allocated.
func (p *OrderPool) Allocated() int { return p.allocated }

// Free returns the number of orders currently available.
func (p *OrderPool) Free() int { return len(p.free) }
