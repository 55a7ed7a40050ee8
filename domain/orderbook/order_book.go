package orderbook

import "fmt"

type indexEntry struct {
	side  Side
	price uint64
}

// OrderBook is the per-market book. It is exclusively owned by the
// matching goroutine; nothing here is safe for concurrent use and
// nothing needs to be. Concurrency lives upstream in the ingress
// queue, not inside the book.
type OrderBook struct {
	Market string

	bids *priceIndex
	asks *priceIndex

	// order id -> (side, price) for O(1) cancellation lookup.
	index map[string]indexEntry
}

// NewOrderBook creates an empty book for one market.
func NewOrderBook(market string) *OrderBook {
	return &OrderBook{
		Market: market,
		bids:   newPriceIndex(),
		asks:   newPriceIndex(),
		index:  make(map[string]indexEntry, 1<<16),
	}
}

func (b *OrderBook) tree(side Side) *priceIndex {
	if side == Buy {
		return b.bids
	}
	return b.asks
}

// top returns the best level on side: max price for bids, min for asks.
func (b *OrderBook) top(side Side) *PriceLevel {
	if side == Buy {
		return b.bids.MaxLevel()
	}
	return b.asks.MinLevel()
}

// BestBid returns the highest resting buy price.
func (b *OrderBook) BestBid() (uint64, bool) {
	if lvl := b.bids.MaxLevel(); lvl != nil {
		return lvl.Price, true
	}
	return 0, false
}

// BestAsk returns the lowest resting sell price.
func (b *OrderBook) BestAsk() (uint64, bool) {
	if lvl := b.asks.MinLevel(); lvl != nil {
		return lvl.Price, true
	}
	return 0, false
}

// PeekTop returns the earliest-sequence order at the best price on
// side, or nil when that side is empty.
func (b *OrderBook) PeekTop(side Side) *Order {
	lvl := b.top(side)
	if lvl == nil {
		return nil
	}
	return lvl.Head()
}

// ConsumeTop reduces the head order at the best price on side by up to
// amount. It returns the executed quantity and whether the head order
// was fully consumed; a consumed head is popped, its index entry
// dropped, and its level removed when empty.
func (b *OrderBook) ConsumeTop(side Side, amount uint64) (executed uint64, fullyFilled bool) {
	lvl := b.top(side)
	if lvl == nil || lvl.Head() == nil {
		return 0, false
	}
	head := lvl.Head()
	executed = amount
	if head.Remaining < executed {
		executed = head.Remaining
	}
	lvl.reduceHead(executed)

	if head.Remaining == 0 {
		lvl.unlink(head)
		delete(b.index, head.ID)
		if lvl.Empty() {
			b.tree(side).DeleteLevel(lvl.Price)
		}
		return executed, true
	}
	return executed, false
}

// Insert appends o to the level at o.Price, creating the level if
// absent, and registers the id for cancellation lookup. Duplicate ids
// are a caller bug.
func (b *OrderBook) Insert(o *Order) {
	if _, dup := b.index[o.ID]; dup {
		panic(fmt.Sprintf("orderbook: duplicate insert of order %s", o.ID))
	}
	lvl := b.tree(o.Side).UpsertLevel(o.Price)
	lvl.enqueue(o)
	b.index[o.ID] = indexEntry{side: o.Side, price: o.Price}
}

// Cancel removes the order by id. Returns the removed order, or nil
// when the id is not resting in the book.
func (b *OrderBook) Cancel(orderID string) *Order {
	ref, ok := b.index[orderID]
	if !ok {
		return nil
	}
	lvl := b.tree(ref.side).FindLevel(ref.price)
	if lvl == nil {
		panic(fmt.Sprintf("orderbook: index points at missing level %d for %s", ref.price, orderID))
	}
	var found *Order
	for o := lvl.Head(); o != nil; o = o.Next() {
		if o.ID == orderID {
			found = o
			break
		}
	}
	if found == nil {
		panic(fmt.Sprintf("orderbook: index points at level %d without order %s", ref.price, orderID))
	}
	lvl.unlink(found)
	delete(b.index, orderID)
	if lvl.Empty() {
		b.tree(ref.side).DeleteLevel(ref.price)
	}
	return found
}

// Reduce sets the resting order's Remaining to newRemaining, which
// must not exceed the current value. Used when rebuilding a book from
// the event stream; live matching goes through ConsumeTop instead.
func (b *OrderBook) Reduce(orderID string, newRemaining uint64) bool {
	ref, ok := b.index[orderID]
	if !ok {
		return false
	}
	lvl := b.tree(ref.side).FindLevel(ref.price)
	if lvl == nil {
		return false
	}
	for o := lvl.Head(); o != nil; o = o.Next() {
		if o.ID != orderID {
			continue
		}
		if newRemaining > o.Remaining {
			panic(fmt.Sprintf("orderbook: reduce of %s would grow remaining", orderID))
		}
		delta := o.Remaining - newRemaining
		o.Remaining = newRemaining
		lvl.TotalSize -= delta
		return true
	}
	return false
}

// Contains reports whether orderID is resting in the book.
func (b *OrderBook) Contains(orderID string) bool {
	_, ok := b.index[orderID]
	return ok
}

// Orders returns the number of resting orders.
func (b *OrderBook) Orders() int { return len(b.index) }

// Levels returns the number of price levels on side.
func (b *OrderBook) Levels(side Side) int { return b.tree(side).Size() }

// Crossed reports max(bids) >= min(asks). A crossed book after a
// completed match is a fatal invariant violation.
func (b *OrderBook) Crossed() bool {
	bb, okB := b.BestBid()
	ba, okA := b.BestAsk()
	return okB && okA && bb >= ba
}

// Level is one aggregated row of a depth snapshot.
type Level struct {
	Price uint64
	Size  uint64
}

// Depth collects up to maxLevels aggregated levels per side, bids
// best-first descending and asks best-first ascending. Called only
// from the matching goroutine, between iterations.
func (b *OrderBook) Depth(maxLevels int) (bids, asks []Level) {
	if maxLevels <= 0 {
		return nil, nil
	}
	bids = make([]Level, 0, maxLevels)
	asks = make([]Level, 0, maxLevels)
	b.bids.ForEachDescending(func(lvl *PriceLevel) bool {
		bids = append(bids, Level{Price: lvl.Price, Size: lvl.TotalSize})
		return len(bids) < maxLevels
	})
	b.asks.ForEachAscending(func(lvl *PriceLevel) bool {
		asks = append(asks, Level{Price: lvl.Price, Size: lvl.TotalSize})
		return len(asks) < maxLevels
	})
	return bids, asks
}

// Walk visits every resting order on side, best price first, FIFO
// within a level.
func (b *OrderBook) Walk(side Side, visit func(*Order) bool) {
	walkLevel := func(lvl *PriceLevel) bool {
		for o := lvl.Head(); o != nil; o = o.Next() {
			if !visit(o) {
				return false
			}
		}
		return true
	}
	if side == Buy {
		b.bids.ForEachDescending(walkLevel)
	} else {
		b.asks.ForEachAscending(walkLevel)
	}
}
