package orderbook

// Fill is one execution produced while matching a taker. The price is
// the maker's resting price: improvement accrues to the taker.
type Fill struct {
	Price          uint64
	Size           uint64
	MakerOrderID   string
	MakerSequence  uint64
	MakerRemaining uint64
	MakerFilled    bool

	// Maker is the consumed order when MakerFilled, for recycling.
	// It is already unlinked from the book; the caller owns it.
	Maker *Order
}

// crosses reports whether a taker at limit is willing to trade with a
// maker resting at price.
func crosses(side Side, limit, price uint64) bool {
	if side == Buy {
		return price <= limit
	}
	return price >= limit
}

// MatchOne runs the taker against the opposite side of the book until
// its limit stops crossing or it is exhausted. Fills are appended to
// out (pass a reused slice to keep the matching path allocation-free)
// strictly in price-time order: better price first, earlier sequence
// first within a price. The taker's Remaining is reduced in place;
// the caller inserts any residual.
//
// Deterministic: a given book state and taker always produce the same
// fills. No clock is consulted here.
func MatchOne(book *OrderBook, taker *Order, out []Fill) []Fill {
	opp := taker.Side.Opposite()
	for taker.Remaining > 0 {
		maker := book.PeekTop(opp)
		if maker == nil || !crosses(taker.Side, taker.Price, maker.Price) {
			break
		}
		makerID := maker.ID
		makerSeq := maker.Sequence
		makerPrice := maker.Price

		executed, makerFilled := book.ConsumeTop(opp, taker.Remaining)
		if executed == 0 {
			panic("orderbook: zero-size execution against " + makerID)
		}
		taker.Remaining -= executed

		fill := Fill{
			Price:          makerPrice,
			Size:           executed,
			MakerOrderID:   makerID,
			MakerSequence:  makerSeq,
			MakerRemaining: maker.Remaining,
			MakerFilled:    makerFilled,
		}
		if makerFilled {
			fill.Maker = maker
		}
		out = append(out, fill)
	}
	return out
}
