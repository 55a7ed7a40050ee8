package orderbook

import "fmt"

// PriceLevel holds the FIFO of resting orders at one price.
// Orders are linked in ascending sequence order; TotalSize always
// equals the sum of Remaining over the list.
type PriceLevel struct {
	Price      uint64
	head       *Order
	tail       *Order
	TotalSize  uint64
	OrderCount int
}

// Head returns the earliest-sequence order at this level.
func (p *PriceLevel) Head() *Order { return p.head }

func (p *PriceLevel) Empty() bool { return p.head == nil }

func (p *PriceLevel) enqueue(o *Order) {
	if p.head == nil {
		p.head = o
		p.tail = o
	} else {
		p.tail.next = o
		o.prev = p.tail
		p.tail = o
	}
	p.TotalSize += o.Remaining
	p.OrderCount++
}

func (p *PriceLevel) unlink(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		p.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		p.tail = o.prev
	}
	o.next = nil
	o.prev = nil
	if o.Remaining > p.TotalSize {
		panic(fmt.Sprintf("orderbook: level %d total size underflow unlinking %s", p.Price, o.ID))
	}
	p.TotalSize -= o.Remaining
	p.OrderCount--
}

// reduceHead shrinks the head order's Remaining by amount, which must
// not exceed it. The caller pops the head when it reaches zero.
func (p *PriceLevel) reduceHead(amount uint64) {
	o := p.head
	if o == nil || amount > o.Remaining || amount > p.TotalSize {
		panic(fmt.Sprintf("orderbook: invalid reduce of %d at level %d", amount, p.Price))
	}
	o.Remaining -= amount
	p.TotalSize -= amount
}

func (p *PriceLevel) String() string {
	return fmt.Sprintf("level{price=%d orders=%d size=%d}", p.Price, p.OrderCount, p.TotalSize)
}
