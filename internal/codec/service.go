package codec

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "clevrgen.v1.Generator"

const (
	executeMethod     = "/" + ServiceName + "/Execute"
	instantiateMethod = "/" + ServiceName + "/Instantiate"
)

// #region service-desc
// GeneratorServer is the server side of the Generator service. Messages are
// google.protobuf.Struct bodies holding the JSON request and response types.
type GeneratorServer interface {
	Execute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Instantiate(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterGeneratorServer registers srv on s.
func RegisterGeneratorServer(s grpc.ServiceRegistrar, srv GeneratorServer) {
	s.RegisterService(&generatorServiceDesc, srv)
}

var generatorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GeneratorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Execute", Handler: unaryHandler(executeMethod, GeneratorServer.Execute)},
		{MethodName: "Instantiate", Handler: unaryHandler(instantiateMethod, GeneratorServer.Instantiate)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "clevrgen/v1/generator.proto",
}

func unaryHandler(fullMethod string, call func(GeneratorServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(GeneratorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(GeneratorServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// #endregion service-desc
