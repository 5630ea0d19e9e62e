package dispatch

import (
	"context"

	"google.golang.org/grpc"
)

// Server exposes a Refresher (the primary-side loader) over gRPC using the
// hand-rolled JSON codec, the non-protobuf mechanism grpc-go documents for
// exactly this situation.
type Server struct {
	refresher Refresher
}

// NewServer wraps refresher for registration on a *grpc.Server.
func NewServer(refresher Refresher) *Server {
	return &Server{refresher: refresher}
}

func (s *Server) forceRoutingTableRefresh(ctx context.Context, req *forceRefreshRequest) (*forceRefreshResponse, error) {
	opTime, err := s.refresher.RefreshNow(ctx, req.NSS)
	if err != nil {
		return &forceRefreshResponse{Err: err.Error()}, nil
	}
	return &forceRefreshResponse{OpTime: opTime}, nil
}

// serviceDesc is built by hand, the same capability grpc-protoc-gen-go
// stubs would normally generate, since this service carries no .proto file.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	// HandlerType must point at an interface type; *Server satisfies the
	// empty interface, and each Handler asserts srv back to *Server.
	HandlerType: (*interface{})(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ForceRoutingTableRefresh",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
				req := new(forceRefreshRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				return srv.(*Server).forceRoutingTableRefresh(ctx, req)
			},
		},
	},
}

// Register attaches the service to gs, the same call site pattern as a
// generated RegisterXxxServer function.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}
