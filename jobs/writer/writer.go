// Package writer drains the event ring, persists batches to the
// outbox, and forwards them downstream. It owns batching policy and
// the retry loop; its refusal to drop anything is what turns a dead
// sink into backpressure at the ingress edge.
package writer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"anvil/api/wire"
	"anvil/domain/event"
	"anvil/infra/outbox"
	"anvil/infra/ring"
	"anvil/sink"
)

// Mirror is an optional best-effort secondary consumer (market data
// feed). It is called synchronously after each settlement ack, bounded
// by the per-attempt timeout, so a slow mirror delays the next batch.
// Mirror failures are logged and never retried.
type Mirror interface {
	Publish(ctx context.Context, firstSeq uint64, payload []byte) error
}

// Config tunes batching and retry.
type Config struct {
	Market       string
	BatchSize    int
	BatchTimeout time.Duration
	RetryBase    time.Duration // first backoff step
	RetryMax     time.Duration // backoff cap
	AttemptTO    time.Duration // per-attempt sink timeout
	PruneEvery   int           // acked batches between outbox prunes
}

func (c *Config) fill() {
	if c.BatchSize <= 0 {
		c.BatchSize = 1000
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 50 * time.Millisecond
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 100 * time.Millisecond
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 5 * time.Second
	}
	if c.AttemptTO <= 0 {
		c.AttemptTO = 10 * time.Second
	}
	if c.PruneEvery <= 0 {
		c.PruneEvery = 64
	}
}

// Writer is the single consumer of the event ring.
type Writer struct {
	cfg    Config
	ring   *ring.EventRing
	box    *outbox.Outbox
	sink   sink.Sink
	mirror Mirror
	log    *zap.Logger

	stop  chan struct{}
	done  chan struct{}
	acked int
}

// New wires a writer. mirror may be nil.
func New(cfg Config, r *ring.EventRing, box *outbox.Outbox, s sink.Sink, mirror Mirror, log *zap.Logger) *Writer {
	cfg.fill()
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{
		cfg:    cfg,
		ring:   r,
		box:    box,
		sink:   s,
		mirror: mirror,
		log:    log,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the writer goroutine.
func (w *Writer) Start() {
	go w.run()
}

// Wait blocks until the writer has flushed everything and exited,
// which happens after the ring is closed and drained.
func (w *Writer) Wait() {
	<-w.done
}

// Stop aborts the writer without waiting for the sink. Batches
// already in the outbox stay pending and are resent on restart.
func (w *Writer) Stop() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
	<-w.done
}

func (w *Writer) stopped() bool {
	select {
	case <-w.stop:
		return true
	default:
		return false
	}
}

func (w *Writer) run() {
	defer close(w.done)

	// Batches that never got acknowledged before the last shutdown
	// go out first, in sequence order, ahead of anything new.
	if err := w.resendPending(); err != nil {
		w.log.Error("outbox replay failed", zap.Error(err))
	}

	buf := make([]event.Event, w.cfg.BatchSize)
	pending := make([]event.Event, 0, w.cfg.BatchSize)
	var batchStart time.Time

	for {
		if w.stopped() {
			return
		}
		if len(pending) == 0 {
			ev, ok := w.ring.TryConsume()
			if !ok {
				if w.ring.Closed() {
					// One more look catches events published
					// just before the close.
					if ev, ok = w.ring.TryConsume(); !ok {
						return
					}
				} else {
					time.Sleep(time.Millisecond)
					continue
				}
			}
			pending = append(pending, ev)
			batchStart = time.Now()
		}

		if n := w.ring.Drain(buf[:w.cfg.BatchSize-len(pending)]); n > 0 {
			pending = append(pending, buf[:n]...)
		}

		full := len(pending) >= w.cfg.BatchSize
		aged := time.Since(batchStart) >= w.cfg.BatchTimeout
		if full || aged || w.ring.Closed() {
			if !w.commit(pending) {
				return // stopped mid-delivery; batch is in the outbox
			}
			pending = pending[:0]
			continue
		}
		time.Sleep(time.Millisecond)
	}
}

// commit persists the batch, then delivers it with bounded-backoff
// retries until the sink acknowledges. Returns false only when
// stopped before acknowledgement.
func (w *Writer) commit(events []event.Event) bool {
	batch := wire.EventBatch{
		BatchID:  uuid.NewString(),
		FirstSeq: events[0].Seq,
		LastSeq:  events[len(events)-1].Seq,
		Events:   events,
	}
	payload := wire.AppendEventBatch(nil, &batch)

	rec := &outbox.Record{
		FirstSeq: batch.FirstSeq,
		LastSeq:  batch.LastSeq,
		BatchID:  batch.BatchID,
		Payload:  payload,
	}
	if err := w.box.Append(rec); err != nil {
		// The outbox is the durability anchor; without it the
		// event stream has no record. Fatal.
		w.log.Panic("outbox append failed", zap.Uint64("first_seq", rec.FirstSeq), zap.Error(err))
	}
	return w.deliver(rec)
}

// deliver pushes one outbox record downstream until acknowledged.
func (w *Writer) deliver(rec *outbox.Record) bool {
	backoff := w.cfg.RetryBase
	for attempt := 1; ; attempt++ {
		if w.stopped() {
			return false
		}
		if err := w.box.MarkSent(rec.FirstSeq); err != nil {
			w.log.Error("outbox mark sent failed", zap.Uint64("first_seq", rec.FirstSeq), zap.Error(err))
		}

		ctx, cancel := context.WithTimeout(context.Background(), w.cfg.AttemptTO)
		err := w.sink.Submit(ctx, rec.BatchID, rec.FirstSeq, rec.LastSeq, rec.Payload)
		cancel()
		if err == nil {
			break
		}

		w.log.Warn("sink rejected batch",
			zap.String("batch_id", rec.BatchID),
			zap.Uint64("first_seq", rec.FirstSeq),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-w.stop:
			return false
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > w.cfg.RetryMax {
			backoff = w.cfg.RetryMax
		}
	}

	if err := w.box.MarkAcked(rec.FirstSeq); err != nil {
		w.log.Error("outbox mark acked failed", zap.Uint64("first_seq", rec.FirstSeq), zap.Error(err))
	}
	w.mirrorBatch(rec)

	w.acked++
	if w.acked%w.cfg.PruneEvery == 0 {
		if err := w.box.PruneAcked(rec.LastSeq); err != nil {
			w.log.Error("outbox prune failed", zap.Error(err))
		}
	}
	return true
}

func (w *Writer) mirrorBatch(rec *outbox.Record) {
	if w.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.AttemptTO)
	defer cancel()
	if err := w.mirror.Publish(ctx, rec.FirstSeq, rec.Payload); err != nil {
		w.log.Warn("feed mirror publish failed", zap.Uint64("first_seq", rec.FirstSeq), zap.Error(err))
	}
}

func (w *Writer) resendPending() error {
	return w.box.ScanPending(func(rec *outbox.Record) error {
		w.log.Info("resending pending batch",
			zap.String("batch_id", rec.BatchID),
			zap.Uint64("first_seq", rec.FirstSeq),
			zap.String("state", rec.State.String()),
		)
		if !w.deliver(rec) {
			return context.Canceled
		}
		return nil
	})
}
