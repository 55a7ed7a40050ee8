// Package engine runs the matching loop: the single goroutine that
// owns the book, assigns sequence numbers, matches takers, and emits
// the event stream. Arrival order at this loop defines logical order
// for the whole market; everything upstream is just transport.
package engine

import (
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"anvil/domain/event"
	"anvil/domain/orderbook"
	"anvil/infra/memory"
	"anvil/infra/queue"
	"anvil/infra/ring"
	"anvil/infra/sequence"
)

// State of the loop lifecycle: ready → running → draining → stopped.
type State int32

const (
	StateReady State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock replaces the advisory timestamp source. Tests pin it;
// matching decisions never read it.
func WithClock(now func() uint64) Option {
	return func(l *Loop) { l.now = now }
}

// WithLogger sets the loop logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Loop) { l.log = log }
}

// Loop is the matching loop for one market.
type Loop struct {
	market string
	book   *orderbook.OrderBook
	queue  *queue.IngressQueue
	ring   *ring.EventRing

	seq  *sequence.Sequencer
	pool *memory.OrderPool

	now   func() uint64
	log   *zap.Logger
	state atomic.Int32
	done  chan struct{}

	fills   []orderbook.Fill // reused across iterations
	idBuf   []byte           // reused for trade id formatting
	proc    uint64           // commands processed
	tradeCt uint64           // trades emitted
}

// New wires a loop. The book, pool, and sequencer become loop-owned;
// nothing else may touch them once Start is called.
func New(
	book *orderbook.OrderBook,
	q *queue.IngressQueue,
	r *ring.EventRing,
	seq *sequence.Sequencer,
	pool *memory.OrderPool,
	opts ...Option,
) *Loop {
	l := &Loop{
		market: book.Market,
		book:   book,
		queue:  q,
		ring:   r,
		seq:    seq,
		pool:   pool,
		now:    func() uint64 { return uint64(time.Now().UnixNano()) },
		log:    zap.NewNop(),
		done:   make(chan struct{}),
		fills:  make([]orderbook.Fill, 0, 64),
		idBuf:  make([]byte, 0, 64),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start launches the loop goroutine. It returns immediately; it does
// not wait for the loop to reach StateRunning.
func (l *Loop) Start() {
	go l.Run()
}

// Run executes the loop on the calling goroutine, pinned to an OS
// thread, until the ingress queue is closed and drained. A panic here
// is fatal to the market: the book cannot be trusted mid-operation
// and must be rebuilt from the event stream.
func (l *Loop) Run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	l.state.Store(int32(StateRunning))
	l.log.Info("matching loop running", zap.String("market", l.market))

	for {
		cmd, ok := l.queue.Dequeue()
		if !ok {
			break
		}
		switch cmd.Kind {
		case queue.KindSubmit:
			l.processSubmit(&cmd.Submission)
		case queue.KindCancel:
			l.processCancel(cmd.CancelOrderID)
		case queue.KindDepth:
			l.processDepth(cmd)
		default:
			panic(fmt.Sprintf("engine: unknown command kind %d", cmd.Kind))
		}
		l.proc++
	}

	l.ring.Close()
	l.state.Store(int32(StateStopped))
	close(l.done)
	l.log.Info("matching loop stopped",
		zap.String("market", l.market),
		zap.Uint64("commands", l.proc),
		zap.Uint64("trades", l.tradeCt),
	)
}

// Drain stops admission, lets the loop finish everything already
// enqueued, and returns when it has stopped and closed the ring.
func (l *Loop) Drain() {
	l.state.CompareAndSwap(int32(StateRunning), int32(StateDraining))
	l.queue.Close()
	<-l.done
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// emit stamps the event with the next stream sequence and an advisory
// timestamp, then publishes. Publish blocks when the ring is full:
// that stall is the backpressure contract — events are never dropped.
func (l *Loop) emit(ev event.Event) {
	ev.Seq = l.seq.NextEvent()
	ev.Market = l.market
	ev.Timestamp = l.now()
	l.ring.Publish(ev)
}

// tradeID builds the deterministic id <market>:<takerSeq>:<fillIdx>.
func (l *Loop) tradeID(takerSeq uint64, fillIdx int) string {
	b := append(l.idBuf[:0], l.market...)
	b = append(b, ':')
	b = strconv.AppendUint(b, takerSeq, 10)
	b = append(b, ':')
	b = strconv.AppendUint(b, uint64(fillIdx), 10)
	l.idBuf = b
	return string(b)
}

func (l *Loop) processSubmit(sub *queue.Submission) {
	seq := l.seq.NextAdmission()

	if sub.Market != l.market {
		l.emit(event.Event{Type: event.OrderRejected, OrderID: sub.OrderID, Reason: "unknown market"})
		return
	}
	if l.book.Contains(sub.OrderID) {
		l.emit(event.Event{Type: event.OrderRejected, OrderID: sub.OrderID, Reason: "duplicate order id"})
		return
	}

	o := l.pool.Get()
	o.ID = sub.OrderID
	o.Market = sub.Market
	o.Side = sub.Side
	o.Price = sub.Price
	o.Size = sub.Size
	o.Remaining = sub.Size
	o.Sequence = seq
	o.Principal = sub.Principal

	l.emit(event.Event{
		Type:    event.OrderAccepted,
		OrderID: o.ID,
		Side:    o.Side,
		Price:   o.Price,
		Size:    o.Size,
	})

	l.fills = orderbook.MatchOne(l.book, o, l.fills[:0])

	for i := range l.fills {
		f := &l.fills[i]
		l.emit(event.Event{
			Type: event.TradeExecuted,
			Trade: event.Trade{
				TradeID:      l.tradeID(seq, i),
				Market:       l.market,
				Price:        f.Price,
				Size:         f.Size,
				TakerSide:    o.Side,
				TakerOrderID: o.ID,
				MakerOrderID: f.MakerOrderID,
				Sequence:     seq,
				Timestamp:    l.now(),
			},
		})
		l.tradeCt++
		if f.MakerFilled {
			l.emit(event.Event{Type: event.OrderFullyFilled, OrderID: f.MakerOrderID})
			l.pool.Put(f.Maker)
		} else {
			l.emit(event.Event{Type: event.OrderResting, OrderID: f.MakerOrderID, Remaining: f.MakerRemaining})
		}
	}

	if o.Remaining > 0 {
		l.book.Insert(o)
		l.emit(event.Event{Type: event.OrderResting, OrderID: o.ID, Remaining: o.Remaining})
	} else {
		l.emit(event.Event{Type: event.OrderFullyFilled, OrderID: o.ID})
		l.pool.Put(o)
	}

	if l.book.Crossed() {
		panic(fmt.Sprintf("engine: crossed book on %s after order %s", l.market, sub.OrderID))
	}
}

func (l *Loop) processCancel(orderID string) {
	l.seq.NextAdmission()
	if o := l.book.Cancel(orderID); o != nil {
		l.emit(event.Event{Type: event.OrderCancelled, OrderID: orderID, Remaining: o.Remaining})
		l.pool.Put(o)
		return
	}
	l.emit(event.Event{Type: event.OrderRejected, OrderID: orderID, Reason: "unknown order"})
}

func (l *Loop) processDepth(cmd queue.Command) {
	bids, asks := l.book.Depth(cmd.Depth)
	if cmd.DepthReply != nil {
		cmd.DepthReply <- queue.DepthReply{Bids: bids, Asks: asks}
	}
}
