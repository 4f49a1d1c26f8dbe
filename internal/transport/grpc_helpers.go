package transport

import (
	"context"

	"google.golang.org/grpc"
)

// unaryCall invokes the actual service method once a request has been
// decoded; req is the concrete *XRequest pointer produced by newReq.
type unaryCall func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error)

// unaryMethod builds a grpc.MethodDesc the way protoc-generated code would:
// decode the request, then run it through any configured interceptor chain.
// Hand-written because no .proto source ships in the retrieval pack to
// generate these from (see codec.go).
func unaryMethod(name string, newReq func() interface{}, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			req := newReq()
			if err := dec(req); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv, ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: name}
			return interceptor(ctx, req, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv, ctx, req)
			})
		},
	}
}
