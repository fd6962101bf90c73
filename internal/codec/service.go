package codec

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region service-desc
// ServiceName is the fully qualified gRPC service name.
const ServiceName = "parrot.StaircaseService"

const (
	methodOpen     = "Open"
	methodRecord   = "Record"
	methodSnapshot = "Snapshot"
	methodClose    = "Close"
)

// StaircaseServer is the server side of parrot.StaircaseService. Every
// message is a google.protobuf.Struct.
type StaircaseServer interface {
	Open(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Record(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Snapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Close(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes parrot.StaircaseService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StaircaseServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: methodOpen, Handler: unaryHandler(methodOpen, StaircaseServer.Open)},
		{MethodName: methodRecord, Handler: unaryHandler(methodRecord, StaircaseServer.Record)},
		{MethodName: methodSnapshot, Handler: unaryHandler(methodSnapshot, StaircaseServer.Snapshot)},
		{MethodName: methodClose, Handler: unaryHandler(methodClose, StaircaseServer.Close)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "parrot/staircase.proto",
}

// RegisterStaircaseServer attaches srv to s.
func RegisterStaircaseServer(s grpc.ServiceRegistrar, srv StaircaseServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type unaryMethod func(StaircaseServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(StaircaseServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(StaircaseServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// #endregion service-desc

// #region service-client
// StaircaseServiceClient is the client side of parrot.StaircaseService.
type StaircaseServiceClient interface {
	Open(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Record(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Snapshot(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Close(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type staircaseServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewStaircaseServiceClient wraps a connection.
func NewStaircaseServiceClient(cc grpc.ClientConnInterface) StaircaseServiceClient {
	return &staircaseServiceClient{cc: cc}
}

func (c *staircaseServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *staircaseServiceClient) Open(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodOpen, in, opts)
}

func (c *staircaseServiceClient) Record(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodRecord, in, opts)
}

func (c *staircaseServiceClient) Snapshot(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodSnapshot, in, opts)
}

func (c *staircaseServiceClient) Close(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodClose, in, opts)
}

// #endregion service-client
