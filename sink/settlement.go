package sink

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"anvil/api/wire"
)

// SubmitTradesMethod is the settlement RPC the core produces into.
const SubmitTradesMethod = "/anvil.settlement.Settlement/SubmitTrades"

// Settlement forwards event batches to the settlement service over
// gRPC. Batches are pre-encoded; the raw codec keeps the conn from
// re-serializing them.
type Settlement struct {
	conn *grpc.ClientConn
}

// DialSettlement connects to the settlement endpoint.
func DialSettlement(endpoint string) (*Settlement, error) {
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(wire.RawCodec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("sink: dial settlement %s: %w", endpoint, err)
	}
	return &Settlement{conn: conn}, nil
}

// Submit delivers one batch and requires a positive acknowledgement
// covering the batch's last sequence.
func (s *Settlement) Submit(ctx context.Context, batchID string, firstSeq, lastSeq uint64, payload []byte) error {
	req := wire.RawMessage(payload)
	var resp wire.RawMessage
	if err := s.conn.Invoke(ctx, SubmitTradesMethod, &req, &resp); err != nil {
		return fmt.Errorf("sink: submit batch %s: %w", batchID, err)
	}
	ack, err := wire.DecodeBatchAck(resp)
	if err != nil {
		return fmt.Errorf("sink: batch %s ack: %w", batchID, err)
	}
	if ack.AckedSeq < lastSeq {
		return fmt.Errorf("sink: batch %s acked through %d, want %d", batchID, ack.AckedSeq, lastSeq)
	}
	return nil
}

// Close tears down the connection.
func (s *Settlement) Close() error {
	return s.conn.Close()
}
