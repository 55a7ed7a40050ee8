package engine

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"anvil/domain/orderbook"
)

type restingEntry struct {
	id        string
	side      orderbook.Side
	price     uint64
	remaining uint64
}

func dumpBook(b *orderbook.OrderBook) []restingEntry {
	var out []restingEntry
	for _, side := range []orderbook.Side{orderbook.Buy, orderbook.Sell} {
		b.Walk(side, func(o *orderbook.Order) bool {
			out = append(out, restingEntry{id: o.ID, side: o.Side, price: o.Price, remaining: o.Remaining})
			return true
		})
	}
	return out
}

// TestRebuildBookMatchesLive rebuilds a book from the event stream of
// a random run and expects identical resting state, including FIFO
// order within each level.
func TestRebuildBookMatchesLive(t *testing.T) {
	h := newHarness(t)
	rng := rand.New(rand.NewSource(13))
	for i := 0; i < 3000; i++ {
		side := orderbook.Buy
		if rng.Intn(2) == 0 {
			side = orderbook.Sell
		}
		h.submit(t, fmt.Sprintf("o%d", i), side, uint64(50000+rng.Intn(80)-40), uint64(1+rng.Intn(6)))
		if rng.Intn(6) == 0 {
			h.cancel(t, fmt.Sprintf("o%d", rng.Intn(i+1)))
		}
	}
	events := h.run(t)

	rebuilt, lastEventSeq, _, err := RebuildBook(testMarket, events)
	require.NoError(t, err)
	require.Equal(t, events[len(events)-1].Seq, lastEventSeq)
	require.Equal(t, dumpBook(h.book), dumpBook(rebuilt))
}

func TestRebuildRejectsOutOfOrderStream(t *testing.T) {
	h := newHarness(t)
	h.submit(t, "b1", orderbook.Buy, 50000, 1)
	events := h.run(t)
	require.NotEmpty(t, events)

	bad := append(events[:0:0], events...)
	bad[0].Seq = events[len(events)-1].Seq + 1
	_, _, _, err := RebuildBook(testMarket, bad)
	require.Error(t, err)
}

func TestRebuildEmptyStream(t *testing.T) {
	book, lastEvent, lastAdmission, err := RebuildBook(testMarket, nil)
	require.NoError(t, err)
	require.Equal(t, 0, book.Orders())
	require.Zero(t, lastEvent)
	require.Zero(t, lastAdmission)
}
