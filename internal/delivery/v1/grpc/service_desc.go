package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const TasteServiceName = "taste.v1.TasteService"

// TasteServiceServer: контракт taste.v1.TasteService. Запросы и ответы - google.protobuf.Struct.
type TasteServiceServer interface {
	Compatibility(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Recommendations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	AggregateEmbedding(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv TasteServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	fullMethod := "/" + TasteServiceName + "/" + method

	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TasteServiceServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(TasteServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var TasteServiceDesc = grpc.ServiceDesc{
	ServiceName: TasteServiceName,
	HandlerType: (*TasteServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Compatibility",
			Handler: unaryHandler("Compatibility", func(srv TasteServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.Compatibility(ctx, req)
			}),
		},
		{
			MethodName: "Recommendations",
			Handler: unaryHandler("Recommendations", func(srv TasteServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.Recommendations(ctx, req)
			}),
		},
		{
			MethodName: "AggregateEmbedding",
			Handler: unaryHandler("AggregateEmbedding", func(srv TasteServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.AggregateEmbedding(ctx, req)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "taste/v1/taste.proto",
}
