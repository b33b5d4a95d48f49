package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Messages travel as google.protobuf.Struct with the same field names as the
// HTTP bodies, so no generated code is needed.

const vendingServiceName = "vending.v1.VendingService"

type VendingServer interface {
	Purchase(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckRegistration(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListItems(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterVendingServer(s grpc.ServiceRegistrar, srv VendingServer) {
	s.RegisterService(&vendingServiceDesc, srv)
}

// FullMethod returns the gRPC method path for name.
func FullMethod(name string) string {
	return "/" + vendingServiceName + "/" + name
}

func unaryHandler(name string, call func(VendingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(VendingServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(VendingServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var vendingServiceDesc = grpc.ServiceDesc{
	ServiceName: vendingServiceName,
	HandlerType: (*VendingServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Purchase", VendingServer.Purchase),
		unaryHandler("CheckRegistration", VendingServer.CheckRegistration),
		unaryHandler("Register", VendingServer.Register),
		unaryHandler("ListItems", VendingServer.ListItems),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vending/v1/vending.proto",
}
