package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// OrdersServiceName is the fully qualified gRPC service name. Requests and
// responses use protobuf well-known types so internal callers need no
// generated stubs: the reference travels as a StringValue and the order as a
// Struct with the same fields as the HTTP JSON body.
const OrdersServiceName = "trangsucvn.orders.v1.OrdersService"

const (
	MethodGetOrderByReference = "/" + OrdersServiceName + "/GetOrderByReference"
	MethodConfirmPayment      = "/" + OrdersServiceName + "/ConfirmPayment"
)

type OrdersServiceServer interface {
	GetOrderByReference(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	ConfirmPayment(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
}

var OrdersServiceDesc = grpc.ServiceDesc{
	ServiceName: OrdersServiceName,
	HandlerType: (*OrdersServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetOrderByReference", Handler: getOrderByReferenceHandler},
		{MethodName: "ConfirmPayment", Handler: confirmPaymentHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "trangsucvn/orders/v1/orders.proto",
}

func RegisterOrdersServiceServer(registrar grpc.ServiceRegistrar, srv OrdersServiceServer) {
	registrar.RegisterService(&OrdersServiceDesc, srv)
}

func getOrderByReferenceHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrdersServiceServer).GetOrderByReference(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetOrderByReference}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OrdersServiceServer).GetOrderByReference(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func confirmPaymentHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrdersServiceServer).ConfirmPayment(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodConfirmPayment}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OrdersServiceServer).ConfirmPayment(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}
