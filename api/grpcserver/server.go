// Package grpcserver exposes the matching core's ingress RPC surface.
// The service is registered from a hand-written ServiceDesc and moves
// raw wire bytes through the transport; message encoding lives in
// api/wire, so there is no generated code and no reflection between
// the socket and the ingress adapter.
package grpcserver

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"anvil/api/wire"
	"anvil/service"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "anvil.matching.Matching"

// Server handles the matching service RPCs.
type Server struct {
	ingress *service.Ingress
	log     *zap.Logger
}

// NewServer creates the RPC surface over an ingress adapter.
func NewServer(ingress *service.Ingress, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{ingress: ingress, log: log}
}

// NewGRPCServer builds a grpc.Server configured with the raw codec
// and registers the matching service on it.
func NewGRPCServer(srv *Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ForceServerCodec(wire.RawCodec{}))
	gs := grpc.NewServer(opts...)
	srv.Register(gs)
	return gs
}

// Register attaches the service to gs.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

func (s *Server) submitOrder(raw wire.RawMessage) (*wire.RawMessage, error) {
	req, err := wire.DecodeSubmitOrderRequest(raw)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	ack := s.ingress.SubmitOrder(req)
	out := wire.RawMessage(wire.AppendOrderAck(nil, &ack))
	return &out, nil
}

func (s *Server) cancelOrder(raw wire.RawMessage) (*wire.RawMessage, error) {
	req, err := wire.DecodeCancelOrderRequest(raw)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	ack := s.ingress.CancelOrder(req)
	out := wire.RawMessage(wire.AppendOrderAck(nil, &ack))
	return &out, nil
}

func (s *Server) getDepth(raw wire.RawMessage) (*wire.RawMessage, error) {
	req, err := wire.DecodeDepthRequest(raw)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	depth := int(req.Depth)
	if depth <= 0 || depth > 1000 {
		depth = 50
	}
	reply, ok := s.ingress.Depth(depth)
	if !ok {
		return nil, status.Error(codes.Unavailable, "market overloaded or draining")
	}
	resp := wire.DepthResponse{Bids: reply.Bids, Asks: reply.Asks}
	out := wire.RawMessage(wire.AppendDepthResponse(nil, &resp))
	return &out, nil
}

func unaryHandler(
	method string,
	invoke func(*Server, wire.RawMessage) (*wire.RawMessage, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(wire.RawMessage)
		if err := dec(in); err != nil {
			return nil, err
		}
		handler := func(_ context.Context, req any) (any, error) {
			return invoke(srv.(*Server), *req.(*wire.RawMessage))
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		return interceptor(ctx, in, info, handler)
	}
}

// matchingServer is the handler contract backing the ServiceDesc.
type matchingServer interface {
	submitOrder(wire.RawMessage) (*wire.RawMessage, error)
	cancelOrder(wire.RawMessage) (*wire.RawMessage, error)
	getDepth(wire.RawMessage) (*wire.RawMessage, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*matchingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitOrder", Handler: unaryHandler("SubmitOrder", (*Server).submitOrder)},
		{MethodName: "CancelOrder", Handler: unaryHandler("CancelOrder", (*Server).cancelOrder)},
		{MethodName: "GetDepth", Handler: unaryHandler("GetDepth", (*Server).getDepth)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "api/wire",
}
