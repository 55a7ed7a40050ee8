package orderbook

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func matchInto(b *OrderBook, taker *Order) []Fill {
	fills := MatchOne(b, taker, nil)
	if taker.Remaining > 0 {
		b.Insert(taker)
	}
	return fills
}

func TestMatchFullFillAtImprovedPrice(t *testing.T) {
	b := NewOrderBook("BTC-USD")
	b.Insert(newOrder("s1", Sell, 50010, 1, 1))

	taker := newOrder("b1", Buy, 50020, 1, 2)
	fills := matchInto(b, taker)

	require.Len(t, fills, 1)
	// execution at the maker's resting price, not the taker's limit
	require.Equal(t, uint64(50010), fills[0].Price)
	require.Equal(t, uint64(1), fills[0].Size)
	require.Equal(t, "s1", fills[0].MakerOrderID)
	require.True(t, fills[0].MakerFilled)
	require.Zero(t, taker.Remaining)
	require.Equal(t, 0, b.Orders())
}

func TestMatchFIFOAtSamePrice(t *testing.T) {
	b := NewOrderBook("BTC-USD")
	b.Insert(newOrder("s1", Sell, 50000, 1, 1))
	b.Insert(newOrder("s2", Sell, 50000, 1, 2))

	taker := newOrder("b1", Buy, 50000, 2, 3)
	fills := matchInto(b, taker)

	require.Len(t, fills, 2)
	require.Equal(t, "s1", fills[0].MakerOrderID)
	require.Equal(t, "s2", fills[1].MakerOrderID)
	require.Zero(t, taker.Remaining)
}

func TestMatchPartialFillRests(t *testing.T) {
	b := NewOrderBook("BTC-USD")
	b.Insert(newOrder("s1", Sell, 50000, 1, 1))

	taker := newOrder("b1", Buy, 50000, 3, 2)
	fills := matchInto(b, taker)

	require.Len(t, fills, 1)
	require.Equal(t, uint64(1), fills[0].Size)
	require.Equal(t, uint64(2), taker.Remaining)

	// residual rests on bids at its limit
	require.True(t, b.Contains("b1"))
	bb, ok := b.BestBid()
	require.True(t, ok)
	require.Equal(t, uint64(50000), bb)
	require.Equal(t, 0, b.Levels(Sell))
}

func TestMatchNoCross(t *testing.T) {
	b := NewOrderBook("BTC-USD")

	buy := newOrder("b1", Buy, 44000, 1, 1)
	require.Empty(t, matchInto(b, buy))

	sell := newOrder("s1", Sell, 55000, 1, 2)
	require.Empty(t, matchInto(b, sell))

	require.Equal(t, 2, b.Orders())
	require.False(t, b.Crossed())
}

func TestMatchPricePriorityBeforeTime(t *testing.T) {
	b := NewOrderBook("BTC-USD")
	b.Insert(newOrder("s1", Sell, 50020, 1, 1)) // earlier but worse price
	b.Insert(newOrder("s2", Sell, 50010, 1, 2)) // later but better price

	taker := newOrder("b1", Buy, 50030, 2, 3)
	fills := matchInto(b, taker)

	require.Len(t, fills, 2)
	require.Equal(t, "s2", fills[0].MakerOrderID)
	require.Equal(t, uint64(50010), fills[0].Price)
	require.Equal(t, "s1", fills[1].MakerOrderID)
	require.Equal(t, uint64(50020), fills[1].Price)
}

func TestMatchSellAgainstBids(t *testing.T) {
	b := NewOrderBook("BTC-USD")
	b.Insert(newOrder("b1", Buy, 50020, 2, 1))
	b.Insert(newOrder("b2", Buy, 50010, 2, 2))

	taker := newOrder("s1", Sell, 50010, 3, 3)
	fills := matchInto(b, taker)

	require.Len(t, fills, 2)
	require.Equal(t, "b1", fills[0].MakerOrderID)
	require.Equal(t, uint64(50020), fills[0].Price)
	require.True(t, fills[0].MakerFilled)
	require.Equal(t, "b2", fills[1].MakerOrderID)
	require.Equal(t, uint64(50010), fills[1].Price)
	require.False(t, fills[1].MakerFilled)
	require.Equal(t, uint64(1), fills[1].MakerRemaining)
	require.Zero(t, taker.Remaining)
}

func TestMatchStopsAtLimit(t *testing.T) {
	b := NewOrderBook("BTC-USD")
	b.Insert(newOrder("s1", Sell, 50000, 1, 1))
	b.Insert(newOrder("s2", Sell, 50005, 1, 2))

	taker := newOrder("b1", Buy, 50000, 5, 3)
	fills := matchInto(b, taker)

	require.Len(t, fills, 1)
	require.Equal(t, "s1", fills[0].MakerOrderID)
	require.Equal(t, uint64(4), taker.Remaining)
	// 50005 ask untouched; book uncrossed with bid resting at 50000
	require.False(t, b.Crossed())
}
