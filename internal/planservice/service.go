// Package planservice exposes the crafting planner as the gRPC service
// autohtn.v1.Planner. Messages travel as google.protobuf.Struct values so the
// service needs no generated stubs; message.go maps them to Go types.
package planservice

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Service and method names on the wire.
const (
	ServiceName    = "autohtn.v1.Planner"
	PlanMethodName = "/" + ServiceName + "/Plan"
)

// PlannerServer is the server API for the Planner service.
type PlannerServer interface {
	Plan(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterPlannerServer registers srv on s.
func RegisterPlannerServer(s grpc.ServiceRegistrar, srv PlannerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func planHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PlannerServer).Plan(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: PlanMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PlannerServer).Plan(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the grpc.ServiceDesc for the Planner service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PlannerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Plan",
			Handler:    planHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "autohtn/v1/planner.proto",
}

// Client calls the Planner service over a connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// PlanStruct sends a raw request Struct.
func (c *Client) PlanStruct(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, PlanMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Plan sends req and decodes the response.
func (c *Client) Plan(ctx context.Context, req Request, opts ...grpc.CallOption) (Response, error) {
	in, err := req.Struct()
	if err != nil {
		return Response{}, err
	}
	out, err := c.PlanStruct(ctx, in, opts...)
	if err != nil {
		return Response{}, err
	}
	return ParseResponse(out)
}
