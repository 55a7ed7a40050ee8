// Package service holds the ingress adapter: the only write entry
// point into the matching core. It translates wire submissions into
// queue commands, applies cheap syntactic validation and the
// idempotency window, and surfaces admission results without ever
// deciding retry policy on the caller's behalf.
package service

import (
	"go.uber.org/zap"

	"anvil/api/wire"
	"anvil/infra/dedup"
	"anvil/infra/queue"
)

const maxOrderIDLen = 64

// Ingress validates and enqueues submissions. Safe for concurrent use
// from any number of producer goroutines. SubmitOrder and CancelOrder
// never block; Depth waits for the loop's reply.
type Ingress struct {
	market string
	q      *queue.IngressQueue
	window *dedup.Window
	log    *zap.Logger
}

// NewIngress creates the adapter for one market.
func NewIngress(market string, q *queue.IngressQueue, window *dedup.Window, log *zap.Logger) *Ingress {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingress{market: market, q: q, window: window, log: log}
}

// validate applies the syntactic checks that never need book state.
// Returns "" when the submission is well formed.
func (in *Ingress) validate(req *wire.SubmitOrderRequest) string {
	switch {
	case req.OrderID == "":
		return "empty order id"
	case len(req.OrderID) > maxOrderIDLen:
		return "order id too long"
	case req.Market == "":
		return "empty market"
	case req.Market != in.market:
		return "unknown market"
	case !req.Side.Valid():
		return "invalid side"
	case req.Price == 0:
		return "zero price"
	case req.Size == 0:
		return "zero size"
	}
	return ""
}

// SubmitOrder admits one submission. ACCEPTED means enqueued, not
// filled: final disposition flows through the event stream.
// OVERLOADED means the caller may retry after backoff; REJECTED means
// it must not.
func (in *Ingress) SubmitOrder(req *wire.SubmitOrderRequest) wire.OrderAck {
	if reason := in.validate(req); reason != "" {
		in.recordOutcome(req.Principal, req.Nonce, dedup.Outcome{Reason: reason})
		return wire.OrderAck{Status: wire.StatusRejected, OrderID: req.OrderID, Reason: reason}
	}

	if req.Nonce != "" {
		if prior, ok := in.window.Lookup(req.Principal, req.Nonce); ok {
			if prior.Accepted {
				return wire.OrderAck{Status: wire.StatusAccepted, OrderID: req.OrderID}
			}
			return wire.OrderAck{Status: wire.StatusRejected, OrderID: req.OrderID, Reason: prior.Reason}
		}
	}

	err := in.q.TryEnqueue(queue.Command{
		Kind: queue.KindSubmit,
		Submission: queue.Submission{
			OrderID:   req.OrderID,
			Market:    req.Market,
			Side:      req.Side,
			Price:     req.Price,
			Size:      req.Size,
			Timestamp: req.Timestamp,
			Principal: req.Principal,
			Nonce:     req.Nonce,
		},
	})
	switch err {
	case nil:
		in.recordOutcome(req.Principal, req.Nonce, dedup.Outcome{Accepted: true})
		return wire.OrderAck{Status: wire.StatusAccepted, OrderID: req.OrderID}
	case queue.ErrOverloaded:
		// Deliberately not recorded: a later retry with the same
		// nonce must be able to land.
		return wire.OrderAck{Status: wire.StatusOverloaded, OrderID: req.OrderID, Reason: "ingress queue full"}
	case queue.ErrClosed:
		return wire.OrderAck{Status: wire.StatusRejected, OrderID: req.OrderID, Reason: "market draining"}
	default:
		in.log.Error("enqueue failed", zap.String("order_id", req.OrderID), zap.Error(err))
		return wire.OrderAck{Status: wire.StatusRejected, OrderID: req.OrderID, Reason: "internal error"}
	}
}

// CancelOrder enqueues a best-effort cancellation. It rides the same
// queue as submissions, so it executes between matching iterations;
// an order already past dequeue cannot be intercepted.
func (in *Ingress) CancelOrder(req *wire.CancelOrderRequest) wire.OrderAck {
	if req.OrderID == "" {
		return wire.OrderAck{Status: wire.StatusRejected, Reason: "empty order id"}
	}
	if req.Market != in.market {
		return wire.OrderAck{Status: wire.StatusRejected, OrderID: req.OrderID, Reason: "unknown market"}
	}

	err := in.q.TryEnqueue(queue.Command{
		Kind:            queue.KindCancel,
		CancelOrderID:   req.OrderID,
		CancelPrincipal: req.Principal,
	})
	switch err {
	case nil:
		return wire.OrderAck{Status: wire.StatusAccepted, OrderID: req.OrderID}
	case queue.ErrOverloaded:
		return wire.OrderAck{Status: wire.StatusOverloaded, OrderID: req.OrderID, Reason: "ingress queue full"}
	default:
		return wire.OrderAck{Status: wire.StatusRejected, OrderID: req.OrderID, Reason: "market draining"}
	}
}

// Depth asks the loop for an aggregated snapshot. The reply is
// produced synchronously between matching iterations.
func (in *Ingress) Depth(levels int) (queue.DepthReply, bool) {
	replyCh := make(chan queue.DepthReply, 1)
	err := in.q.TryEnqueue(queue.Command{
		Kind:       queue.KindDepth,
		Depth:      levels,
		DepthReply: replyCh,
	})
	if err != nil {
		return queue.DepthReply{}, false
	}
	return <-replyCh, true
}

func (in *Ingress) recordOutcome(principal, nonce string, out dedup.Outcome) {
	if nonce != "" {
		in.window.Record(principal, nonce, out)
	}
}
