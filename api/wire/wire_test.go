package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"anvil/domain/event"
	"anvil/domain/orderbook"
)

func TestSubmitOrderRequestRoundtrip(t *testing.T) {
	in := &SubmitOrderRequest{
		OrderID:   "ord-123",
		Market:    "BTC-USD",
		Side:      orderbook.Sell,
		Price:     50010,
		Size:      3,
		Timestamp: 1700000000,
		Principal: "0xabc",
		Nonce:     "n-9",
	}
	out, err := DecodeSubmitOrderRequest(AppendSubmitOrderRequest(nil, in))
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestEventBatchRoundtrip(t *testing.T) {
	batch := &EventBatch{
		BatchID:  "batch-1",
		FirstSeq: 100,
		LastSeq:  102,
		Events: []event.Event{
			{Seq: 100, Type: event.OrderAccepted, Market: "BTC-USD", OrderID: "b1",
				Side: orderbook.Buy, Price: 50020, Size: 1, Timestamp: 5},
			{Seq: 101, Type: event.TradeExecuted, Market: "BTC-USD", Timestamp: 6,
				Trade: event.Trade{
					TradeID:      "BTC-USD:2:0",
					Market:       "BTC-USD",
					Price:        50010,
					Size:         1,
					TakerSide:    orderbook.Buy,
					TakerOrderID: "b1",
					MakerOrderID: "s1",
					Sequence:     2,
					Timestamp:    6,
				}},
			{Seq: 102, Type: event.OrderFullyFilled, Market: "BTC-USD", OrderID: "b1", Timestamp: 6},
		},
	}
	out, err := DecodeEventBatch(AppendEventBatch(nil, batch))
	require.NoError(t, err)
	require.Equal(t, batch, out)
}

func TestDepthResponseRoundtrip(t *testing.T) {
	in := &DepthResponse{
		Bids: []orderbook.Level{{Price: 50000, Size: 3}, {Price: 49990, Size: 1}},
		Asks: []orderbook.Level{{Price: 50010, Size: 2}},
	}
	out, err := DecodeDepthResponse(AppendDepthResponse(nil, in))
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestUnknownFieldsSkipped(t *testing.T) {
	// an ack encoded by a newer peer with an extra field must still
	// parse; the unknown field is ignored
	b := AppendOrderAck(nil, &OrderAck{Status: StatusAccepted, OrderID: "o1"})
	b = appendString(b, 99, "future-field")

	ack, err := DecodeOrderAck(b)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, ack.Status)
	require.Equal(t, "o1", ack.OrderID)
}

func TestGarbageRejected(t *testing.T) {
	_, err := DecodeSubmitOrderRequest([]byte{0xFF, 0xFF, 0xFF})
	require.Error(t, err)
}

func TestRawCodec(t *testing.T) {
	c := RawCodec{}
	payload := RawMessage([]byte{1, 2, 3})

	b, err := c.Marshal(&payload)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, b)

	var out RawMessage
	require.NoError(t, c.Unmarshal(b, &out))
	require.Equal(t, payload, out)

	_, err = c.Marshal(struct{}{})
	require.Error(t, err)
}
