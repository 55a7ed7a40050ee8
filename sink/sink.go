// Package sink abstracts the downstream consumers of the event
// stream. The settlement RPC sink is the canonical one; a Kafka sink
// exists for deployments that settle off a topic instead.
package sink

import "context"

// Sink receives encoded event batches in production order. Submit
// must not return nil unless the batch is durably accepted
// downstream; the writer retries on error and never reorders.
type Sink interface {
	// Submit delivers one wire-encoded EventBatch. firstSeq and
	// lastSeq bound the batch's event sequences.
	Submit(ctx context.Context, batchID string, firstSeq, lastSeq uint64, payload []byte) error
	Close() error
}
