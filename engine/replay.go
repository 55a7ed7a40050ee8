package engine

import (
	"fmt"

	"anvil/domain/event"
	"anvil/domain/orderbook"
)

// RebuildBook replays an ordered event stream into a fresh book.
// This is the operator restart path: the downstream event log is the
// durable record, so a crashed market is recovered by feeding its
// events back through here and resuming the sequencers from the
// returned values.
//
// Events must be in stream order. Trade events carry no book state of
// their own — maker and taker mutations arrive as OrderResting and
// OrderFullyFilled events — so replay skips them. The admission
// high-water mark is counted from the one taker outcome, cancel, or
// rejection event each admitted command produces.
func RebuildBook(market string, events []event.Event) (book *orderbook.OrderBook, lastEventSeq, lastAdmissionSeq uint64, err error) {
	book = orderbook.NewOrderBook(market)

	// Orders announced but not yet resting or terminal.
	type pendingOrder struct {
		side  orderbook.Side
		price uint64
		size  uint64
	}
	pending := make(map[string]pendingOrder)

	for i := range events {
		ev := &events[i]
		if ev.Seq <= lastEventSeq {
			return nil, 0, 0, fmt.Errorf("engine: event stream out of order at seq %d", ev.Seq)
		}
		lastEventSeq = ev.Seq

		switch ev.Type {
		case event.OrderAccepted:
			pending[ev.OrderID] = pendingOrder{side: ev.Side, price: ev.Price, size: ev.Size}

		case event.OrderResting:
			if p, ok := pending[ev.OrderID]; ok {
				// Taker (or untouched order) coming to rest.
				delete(pending, ev.OrderID)
				lastAdmissionSeq++
				book.Insert(&orderbook.Order{
					ID:        ev.OrderID,
					Market:    market,
					Side:      p.side,
					Price:     p.price,
					Size:      p.size,
					Remaining: ev.Remaining,
					Sequence:  lastAdmissionSeq,
				})
			} else if !book.Reduce(ev.OrderID, ev.Remaining) {
				return nil, 0, 0, fmt.Errorf("engine: resting event for unknown order %s", ev.OrderID)
			}

		case event.OrderFullyFilled:
			if _, ok := pending[ev.OrderID]; ok {
				// Taker filled before resting; consumed an
				// admission slot all the same.
				delete(pending, ev.OrderID)
				lastAdmissionSeq++
				break
			}
			if book.Cancel(ev.OrderID) == nil {
				return nil, 0, 0, fmt.Errorf("engine: fill event for unknown order %s", ev.OrderID)
			}

		case event.OrderCancelled:
			lastAdmissionSeq++
			book.Cancel(ev.OrderID)

		case event.OrderRejected:
			lastAdmissionSeq++
			delete(pending, ev.OrderID)

		case event.TradeExecuted:
			// Audit record; book deltas ride the maker/taker events.

		default:
			return nil, 0, 0, fmt.Errorf("engine: unknown event type %d at seq %d", ev.Type, ev.Seq)
		}
	}

	if book.Crossed() {
		return nil, 0, 0, fmt.Errorf("engine: rebuilt book for %s is crossed", market)
	}
	return book, lastEventSeq, lastAdmissionSeq, nil
}
