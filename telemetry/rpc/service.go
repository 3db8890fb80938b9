// Package rpc is the diagnostics gRPC surface for the telemetry sidecar:
// one unary RPC exposing an Allocator's Stats snapshot. It is wired
// directly into google.golang.org/grpc via a manually authored
// grpc.ServiceDesc and a gob encoding.Codec rather than protoc-generated
// stubs (see codec.go and DESIGN.md), the same adapter-over-a-service
// shape the engine's own api/grpcserver.Server uses over OrderService.
package rpc

import (
	"context"

	"vaultmem/alloc"

	"google.golang.org/grpc"
)

// StatsSource is anything that can report an allocator's current
// introspection snapshot; *alloc.Allocator satisfies this directly.
type StatsSource interface {
	Stats() alloc.Stats
}

// StatsRequest carries no fields; present for symmetry with the
// request/response RPC shape and to leave room for future filtering.
type StatsRequest struct{}

// StatsResponse mirrors alloc.Stats across the wire.
type StatsResponse struct {
	NumHandles     uint32
	NumRegions     int32
	LiveThreads    int32
	GraveyardSlots int32
}

// DiagnosticsServer is the interface grpc.ServiceDesc dispatches to.
type DiagnosticsServer interface {
	GetStats(context.Context, *StatsRequest) (*StatsResponse, error)
}

// Server adapts a StatsSource to DiagnosticsServer.
type Server struct {
	source StatsSource
}

func NewServer(source StatsSource) *Server {
	return &Server{source: source}
}

func (s *Server) GetStats(ctx context.Context, req *StatsRequest) (*StatsResponse, error) {
	st := s.source.Stats()
	return &StatsResponse{
		NumHandles:     st.NumHandles,
		NumRegions:     int32(st.NumRegions),
		LiveThreads:    int32(st.LiveThreads),
		GraveyardSlots: int32(st.GraveyardSlots),
	}, nil
}

func _Diagnostics_GetStats_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StatsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DiagnosticsServer).GetStats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/telemetry.Diagnostics/GetStats"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DiagnosticsServer).GetStats(ctx, req.(*StatsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc registers DiagnosticsServer's single method the way
// protoc-gen-go-grpc output would, hand-authored since no .proto source
// was available to regenerate it from.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "telemetry.Diagnostics",
	HandlerType: (*DiagnosticsServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetStats",
			Handler:    _Diagnostics_GetStats_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "telemetry/rpc/diagnostics",
}

// RegisterDiagnosticsServer registers srv on s under ServiceDesc.
func RegisterDiagnosticsServer(s *grpc.Server, srv DiagnosticsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client is a thin wrapper over a *grpc.ClientConn that always requests
// the gob content-subtype this service is registered under.
type Client struct {
	cc *grpc.ClientConn
}

func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc}
}

func (c *Client) GetStats(ctx context.Context, req *StatsRequest) (*StatsResponse, error) {
	out := new(StatsResponse)
	err := c.cc.Invoke(ctx, "/telemetry.Diagnostics/GetStats", req, out, grpc.CallContentSubtype(codecName))
	return out, err
}
