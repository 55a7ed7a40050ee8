package wire

import "fmt"

// RawMessage is the unit the gRPC layer moves: already-encoded wire
// bytes. Handlers and clients do their own encoding with this
// package, so the transport codec is a pass-through.
type RawMessage []byte

// RawCodec satisfies gRPC's encoding.Codec without pulling protobuf
// reflection into the request path. Register it with ForceCodec /
// ForceServerCodec.
type RawCodec struct{}

// Name identifies the codec.
func (RawCodec) Name() string { return "anvil-raw" }

// Marshal passes the pre-encoded bytes through.
func (RawCodec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case *RawMessage:
		return *m, nil
	case RawMessage:
		return m, nil
	case []byte:
		return m, nil
	default:
		return nil, fmt.Errorf("wire: raw codec cannot marshal %T", v)
	}
}

// Unmarshal copies the received bytes out.
func (RawCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(*RawMessage)
	if !ok {
		return fmt.Errorf("wire: raw codec cannot unmarshal into %T", v)
	}
	*m = append((*m)[:0], data...)
	return nil
}
