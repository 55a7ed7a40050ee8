// Package wire is the binary protocol of the matching core: order
// submissions in, event batches out. Messages are protobuf wire
// format, encoded and decoded directly with protowire so the hot path
// stays reflection-free and the repo needs no code generation step.
// Field numbers are frozen; add, never renumber.
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"anvil/domain/event"
	"anvil/domain/orderbook"
)

// Status of an admission attempt, as seen by the submitting client.
type Status uint8

const (
	StatusAccepted   Status = 1
	StatusRejected   Status = 2
	StatusOverloaded Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusAccepted:
		return "ACCEPTED"
	case StatusRejected:
		return "REJECTED"
	case StatusOverloaded:
		return "OVERLOADED"
	default:
		return "UNKNOWN"
	}
}

// SubmitOrderRequest is one order submission.
//
//	1 order_id  2 market  3 side  4 price  5 size
//	6 timestamp  7 principal  8 nonce
type SubmitOrderRequest struct {
	OrderID   string
	Market    string
	Side      orderbook.Side
	Price     uint64
	Size      uint64
	Timestamp uint64
	Principal string
	Nonce     string
}

// OrderAck answers SubmitOrder and CancelOrder.
//
//	1 status  2 order_id  3 reason
type OrderAck struct {
	Status  Status
	OrderID string
	Reason  string
}

// CancelOrderRequest requests best-effort removal of a resting order.
//
//	1 order_id  2 market  3 principal  4 nonce
type CancelOrderRequest struct {
	OrderID   string
	Market    string
	Principal string
	Nonce     string
}

// DepthRequest asks for an aggregated book snapshot.
//
//	1 market  2 depth
type DepthRequest struct {
	Market string
	Depth  uint64
}

// DepthResponse carries aggregated levels, best first.
//
//	1 bids (repeated Level)  2 asks (repeated Level)
//	Level: 1 price  2 size
type DepthResponse struct {
	Bids []orderbook.Level
	Asks []orderbook.Level
}

// EventBatch is the unit delivered to the settlement sink. Events
// cover the contiguous sequence range [FirstSeq, LastSeq].
//
//	1 batch_id  2 first_seq  3 last_seq  4 events (repeated Event)
type EventBatch struct {
	BatchID  string
	FirstSeq uint64
	LastSeq  uint64
	Events   []event.Event
}

// BatchAck acknowledges an EventBatch.
//
//	1 acked_seq
type BatchAck struct {
	AckedSeq uint64
}

/******************** encode ********************/

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// AppendSubmitOrderRequest appends the encoded request to b.
func AppendSubmitOrderRequest(b []byte, m *SubmitOrderRequest) []byte {
	b = appendString(b, 1, m.OrderID)
	b = appendString(b, 2, m.Market)
	b = appendUint(b, 3, uint64(m.Side))
	b = appendUint(b, 4, m.Price)
	b = appendUint(b, 5, m.Size)
	b = appendUint(b, 6, m.Timestamp)
	b = appendString(b, 7, m.Principal)
	b = appendString(b, 8, m.Nonce)
	return b
}

// AppendOrderAck appends the encoded ack to b.
func AppendOrderAck(b []byte, m *OrderAck) []byte {
	b = appendUint(b, 1, uint64(m.Status))
	b = appendString(b, 2, m.OrderID)
	b = appendString(b, 3, m.Reason)
	return b
}

// AppendCancelOrderRequest appends the encoded request to b.
func AppendCancelOrderRequest(b []byte, m *CancelOrderRequest) []byte {
	b = appendString(b, 1, m.OrderID)
	b = appendString(b, 2, m.Market)
	b = appendString(b, 3, m.Principal)
	b = appendString(b, 4, m.Nonce)
	return b
}

// AppendDepthRequest appends the encoded request to b.
func AppendDepthRequest(b []byte, m *DepthRequest) []byte {
	b = appendString(b, 1, m.Market)
	b = appendUint(b, 2, m.Depth)
	return b
}

func appendLevel(b []byte, num protowire.Number, lvl orderbook.Level) []byte {
	var inner []byte
	inner = appendUint(inner, 1, lvl.Price)
	inner = appendUint(inner, 2, lvl.Size)
	return appendMessage(b, num, inner)
}

// AppendDepthResponse appends the encoded response to b.
func AppendDepthResponse(b []byte, m *DepthResponse) []byte {
	for _, lvl := range m.Bids {
		b = appendLevel(b, 1, lvl)
	}
	for _, lvl := range m.Asks {
		b = appendLevel(b, 2, lvl)
	}
	return b
}

func appendTrade(b []byte, t *event.Trade) []byte {
	b = appendString(b, 1, t.TradeID)
	b = appendString(b, 2, t.Market)
	b = appendUint(b, 3, t.Price)
	b = appendUint(b, 4, t.Size)
	b = appendUint(b, 5, uint64(t.TakerSide))
	b = appendString(b, 6, t.TakerOrderID)
	b = appendString(b, 7, t.MakerOrderID)
	b = appendUint(b, 8, t.Sequence)
	b = appendUint(b, 9, t.Timestamp)
	return b
}

// AppendEvent appends the encoded event to b.
func AppendEvent(b []byte, ev *event.Event) []byte {
	b = appendUint(b, 1, ev.Seq)
	b = appendUint(b, 2, uint64(ev.Type))
	b = appendString(b, 3, ev.Market)
	b = appendString(b, 4, ev.OrderID)
	b = appendUint(b, 5, uint64(ev.Side))
	b = appendUint(b, 6, ev.Price)
	b = appendUint(b, 7, ev.Size)
	b = appendUint(b, 8, ev.Remaining)
	b = appendString(b, 9, ev.Reason)
	if ev.Type == event.TradeExecuted {
		b = appendMessage(b, 10, appendTrade(nil, &ev.Trade))
	}
	b = appendUint(b, 11, ev.Timestamp)
	return b
}

// AppendEventBatch appends the encoded batch to b.
func AppendEventBatch(b []byte, m *EventBatch) []byte {
	b = appendString(b, 1, m.BatchID)
	b = appendUint(b, 2, m.FirstSeq)
	b = appendUint(b, 3, m.LastSeq)
	for i := range m.Events {
		b = appendMessage(b, 4, AppendEvent(nil, &m.Events[i]))
	}
	return b
}

// AppendBatchAck appends the encoded ack to b.
func AppendBatchAck(b []byte, m *BatchAck) []byte {
	return appendUint(b, 1, m.AckedSeq)
}

/******************** decode ********************/

// fieldFn consumes the value of one field. b is positioned after the
// tag; it returns the consumed byte count.
type fieldFn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func walkFields(b []byte, fn fieldFn) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		used, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if used < 0 {
			// field not handled: skip it for forward compatibility
			used = protowire.ConsumeFieldValue(num, typ, b)
			if used < 0 {
				return protowire.ParseError(used)
			}
		}
		b = b[used:]
	}
	return nil
}

func consumeUint(b []byte, dst *uint64) (int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = v
	return n, nil
}

func consumeString(b []byte, dst *string) (int, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = string(v)
	return n, nil
}

func consumeBytes(b []byte) ([]byte, int, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

// DecodeSubmitOrderRequest parses b.
func DecodeSubmitOrderRequest(b []byte) (*SubmitOrderRequest, error) {
	m := &SubmitOrderRequest{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(b, &m.OrderID)
		case 2:
			return consumeString(b, &m.Market)
		case 3:
			var v uint64
			n, err := consumeUint(b, &v)
			m.Side = orderbook.Side(v)
			return n, err
		case 4:
			return consumeUint(b, &m.Price)
		case 5:
			return consumeUint(b, &m.Size)
		case 6:
			return consumeUint(b, &m.Timestamp)
		case 7:
			return consumeString(b, &m.Principal)
		case 8:
			return consumeString(b, &m.Nonce)
		}
		return -1, nil
	})
	if err != nil {
		return nil, fmt.Errorf("wire: submit order request: %w", err)
	}
	return m, nil
}

// DecodeOrderAck parses b.
func DecodeOrderAck(b []byte) (*OrderAck, error) {
	m := &OrderAck{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			var v uint64
			n, err := consumeUint(b, &v)
			m.Status = Status(v)
			return n, err
		case 2:
			return consumeString(b, &m.OrderID)
		case 3:
			return consumeString(b, &m.Reason)
		}
		return -1, nil
	})
	if err != nil {
		return nil, fmt.Errorf("wire: order ack: %w", err)
	}
	return m, nil
}

// DecodeCancelOrderRequest parses b.
func DecodeCancelOrderRequest(b []byte) (*CancelOrderRequest, error) {
	m := &CancelOrderRequest{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(b, &m.OrderID)
		case 2:
			return consumeString(b, &m.Market)
		case 3:
			return consumeString(b, &m.Principal)
		case 4:
			return consumeString(b, &m.Nonce)
		}
		return -1, nil
	})
	if err != nil {
		return nil, fmt.Errorf("wire: cancel order request: %w", err)
	}
	return m, nil
}

// DecodeDepthRequest parses b.
func DecodeDepthRequest(b []byte) (*DepthRequest, error) {
	m := &DepthRequest{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(b, &m.Market)
		case 2:
			return consumeUint(b, &m.Depth)
		}
		return -1, nil
	})
	if err != nil {
		return nil, fmt.Errorf("wire: depth request: %w", err)
	}
	return m, nil
}

func decodeLevel(b []byte) (orderbook.Level, error) {
	var lvl orderbook.Level
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint(b, &lvl.Price)
		case 2:
			return consumeUint(b, &lvl.Size)
		}
		return -1, nil
	})
	return lvl, err
}

// DecodeDepthResponse parses b.
func DecodeDepthResponse(b []byte) (*DepthResponse, error) {
	m := &DepthResponse{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1, 2:
			raw, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}
			lvl, err := decodeLevel(raw)
			if err != nil {
				return 0, err
			}
			if num == 1 {
				m.Bids = append(m.Bids, lvl)
			} else {
				m.Asks = append(m.Asks, lvl)
			}
			return n, nil
		}
		return -1, nil
	})
	if err != nil {
		return nil, fmt.Errorf("wire: depth response: %w", err)
	}
	return m, nil
}

func decodeTrade(b []byte, t *event.Trade) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(b, &t.TradeID)
		case 2:
			return consumeString(b, &t.Market)
		case 3:
			return consumeUint(b, &t.Price)
		case 4:
			return consumeUint(b, &t.Size)
		case 5:
			var v uint64
			n, err := consumeUint(b, &v)
			t.TakerSide = orderbook.Side(v)
			return n, err
		case 6:
			return consumeString(b, &t.TakerOrderID)
		case 7:
			return consumeString(b, &t.MakerOrderID)
		case 8:
			return consumeUint(b, &t.Sequence)
		case 9:
			return consumeUint(b, &t.Timestamp)
		}
		return -1, nil
	})
}

// DecodeEvent parses one event.
func DecodeEvent(b []byte) (event.Event, error) {
	var ev event.Event
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint(b, &ev.Seq)
		case 2:
			var v uint64
			n, err := consumeUint(b, &v)
			ev.Type = event.Type(v)
			return n, err
		case 3:
			return consumeString(b, &ev.Market)
		case 4:
			return consumeString(b, &ev.OrderID)
		case 5:
			var v uint64
			n, err := consumeUint(b, &v)
			ev.Side = orderbook.Side(v)
			return n, err
		case 6:
			return consumeUint(b, &ev.Price)
		case 7:
			return consumeUint(b, &ev.Size)
		case 8:
			return consumeUint(b, &ev.Remaining)
		case 9:
			return consumeString(b, &ev.Reason)
		case 10:
			raw, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}
			if err := decodeTrade(raw, &ev.Trade); err != nil {
				return 0, err
			}
			return n, nil
		case 11:
			return consumeUint(b, &ev.Timestamp)
		}
		return -1, nil
	})
	if err != nil {
		return event.Event{}, fmt.Errorf("wire: event: %w", err)
	}
	return ev, nil
}

// DecodeEventBatch parses b.
func DecodeEventBatch(b []byte) (*EventBatch, error) {
	m := &EventBatch{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(b, &m.BatchID)
		case 2:
			return consumeUint(b, &m.FirstSeq)
		case 3:
			return consumeUint(b, &m.LastSeq)
		case 4:
			raw, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}
			ev, err := DecodeEvent(raw)
			if err != nil {
				return 0, err
			}
			m.Events = append(m.Events, ev)
			return n, nil
		}
		return -1, nil
	})
	if err != nil {
		return nil, fmt.Errorf("wire: event batch: %w", err)
	}
	return m, nil
}

// DecodeBatchAck parses b.
func DecodeBatchAck(b []byte) (*BatchAck, error) {
	m := &BatchAck{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeUint(b, &m.AckedSeq)
		}
		return -1, nil
	})
	if err != nil {
		return nil, fmt.Errorf("wire: batch ack: %w", err)
	}
	return m, nil
}
