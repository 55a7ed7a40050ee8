package service

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"anvil/api/wire"
	"anvil/domain/orderbook"
	"anvil/infra/dedup"
	"anvil/infra/queue"
)

func newIngress(queueCap int) (*Ingress, *queue.IngressQueue) {
	q := queue.New(queueCap)
	return NewIngress("BTC-USD", q, dedup.NewWindow(64), zap.NewNop()), q
}

func validReq(id string) *wire.SubmitOrderRequest {
	return &wire.SubmitOrderRequest{
		OrderID:   id,
		Market:    "BTC-USD",
		Side:      orderbook.Buy,
		Price:     50000,
		Size:      1,
		Principal: "alice",
	}
}

func TestSubmitAccepted(t *testing.T) {
	in, q := newIngress(8)
	ack := in.SubmitOrder(validReq("o1"))
	require.Equal(t, wire.StatusAccepted, ack.Status)
	require.Equal(t, "o1", ack.OrderID)
	require.Equal(t, 1, q.Len())
}

func TestSubmitValidation(t *testing.T) {
	in, q := newIngress(8)

	cases := []struct {
		name   string
		mutate func(*wire.SubmitOrderRequest)
		reason string
	}{
		{"empty id", func(r *wire.SubmitOrderRequest) { r.OrderID = "" }, "empty order id"},
		{"long id", func(r *wire.SubmitOrderRequest) { r.OrderID = string(make([]byte, 65)) }, "order id too long"},
		{"empty market", func(r *wire.SubmitOrderRequest) { r.Market = "" }, "empty market"},
		{"wrong market", func(r *wire.SubmitOrderRequest) { r.Market = "ETH-USD" }, "unknown market"},
		{"bad side", func(r *wire.SubmitOrderRequest) { r.Side = 7 }, "invalid side"},
		{"zero price", func(r *wire.SubmitOrderRequest) { r.Price = 0 }, "zero price"},
		{"zero size", func(r *wire.SubmitOrderRequest) { r.Size = 0 }, "zero size"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validReq("o1")
			tc.mutate(req)
			ack := in.SubmitOrder(req)
			require.Equal(t, wire.StatusRejected, ack.Status)
			require.Equal(t, tc.reason, ack.Reason)
		})
	}
	require.Equal(t, 0, q.Len(), "rejected submissions must not be enqueued")
}

func TestSubmitOverloaded(t *testing.T) {
	in, _ := newIngress(2)
	require.Equal(t, wire.StatusAccepted, in.SubmitOrder(validReq("o1")).Status)
	require.Equal(t, wire.StatusAccepted, in.SubmitOrder(validReq("o2")).Status)

	ack := in.SubmitOrder(validReq("o3"))
	require.Equal(t, wire.StatusOverloaded, ack.Status)
}

func TestDuplicateNonceReturnsPriorOutcome(t *testing.T) {
	in, q := newIngress(8)

	req := validReq("o1")
	req.Nonce = "n1"
	require.Equal(t, wire.StatusAccepted, in.SubmitOrder(req).Status)
	require.Equal(t, 1, q.Len())

	// same (principal, nonce): prior outcome, nothing enqueued
	dup := validReq("o1-retry")
	dup.Nonce = "n1"
	require.Equal(t, wire.StatusAccepted, in.SubmitOrder(dup).Status)
	require.Equal(t, 1, q.Len())

	// rejected outcomes replay too
	bad := validReq("o2")
	bad.Nonce = "n2"
	bad.Size = 0
	require.Equal(t, wire.StatusRejected, in.SubmitOrder(bad).Status)

	badDup := validReq("o2-retry")
	badDup.Nonce = "n2"
	ack := in.SubmitOrder(badDup)
	require.Equal(t, wire.StatusRejected, ack.Status)
	require.Equal(t, "zero size", ack.Reason)
}

func TestOverloadNotRecordedInWindow(t *testing.T) {
	in, q := newIngress(1)

	first := validReq("o1")
	first.Nonce = "n-first"
	require.Equal(t, wire.StatusAccepted, in.SubmitOrder(first).Status)

	blocked := validReq("o2")
	blocked.Nonce = "n-second"
	require.Equal(t, wire.StatusOverloaded, in.SubmitOrder(blocked).Status)

	// drain one slot and retry with the same nonce: must land
	_, ok := q.Dequeue()
	require.True(t, ok)
	retry := validReq("o2")
	retry.Nonce = "n-second"
	require.Equal(t, wire.StatusAccepted, in.SubmitOrder(retry).Status)
}

func TestCancelOrder(t *testing.T) {
	in, q := newIngress(8)

	ack := in.CancelOrder(&wire.CancelOrderRequest{OrderID: "o1", Market: "BTC-USD"})
	require.Equal(t, wire.StatusAccepted, ack.Status)
	require.Equal(t, 1, q.Len())

	ack = in.CancelOrder(&wire.CancelOrderRequest{OrderID: "", Market: "BTC-USD"})
	require.Equal(t, wire.StatusRejected, ack.Status)

	ack = in.CancelOrder(&wire.CancelOrderRequest{OrderID: "o1", Market: "ETH-USD"})
	require.Equal(t, wire.StatusRejected, ack.Status)
}

func TestDrainingRejectsSubmissions(t *testing.T) {
	in, q := newIngress(8)
	q.Close()
	ack := in.SubmitOrder(validReq("o1"))
	require.Equal(t, wire.StatusRejected, ack.Status)
	require.Equal(t, "market draining", ack.Reason)
}
