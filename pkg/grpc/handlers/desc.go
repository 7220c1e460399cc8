package handlers

import (
	"context"

	"google.golang.org/grpc"

	"github.com/softreason/softreason/pkg/reasoning"
)

// MemoryServiceName is the fully qualified gRPC service name.
const MemoryServiceName = "softreason.v1.Memory"

const (
	methodIngest      = "/" + MemoryServiceName + "/Ingest"
	methodBatchIngest = "/" + MemoryServiceName + "/BatchIngest"
	methodQuery       = "/" + MemoryServiceName + "/Query"
	methodDelete      = "/" + MemoryServiceName + "/Delete"
	methodPrune       = "/" + MemoryServiceName + "/Prune"
	methodHealth      = "/" + MemoryServiceName + "/Health"
	methodWatch       = "/" + MemoryServiceName + "/Watch"
)

// MemoryServiceDesc describes softreason.v1.Memory for grpc.Server.RegisterService.
var MemoryServiceDesc = grpc.ServiceDesc{
	ServiceName: MemoryServiceName,
	HandlerType: (*MemoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ingest", Handler: unaryHandler(methodIngest, MemoryServer.Ingest)},
		{MethodName: "BatchIngest", Handler: unaryHandler(methodBatchIngest, MemoryServer.BatchIngest)},
		{MethodName: "Query", Handler: unaryHandler(methodQuery, MemoryServer.Query)},
		{MethodName: "Delete", Handler: unaryHandler(methodDelete, MemoryServer.Delete)},
		{MethodName: "Prune", Handler: unaryHandler(methodPrune, MemoryServer.Prune)},
		{MethodName: "Health", Handler: unaryHandler(methodHealth, MemoryServer.Health)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "softreason/v1/memory",
}

// unaryHandler adapts a typed MemoryServer method to grpc.MethodDesc.
func unaryHandler[Req, Resp any](fullMethod string, call func(MemoryServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MemoryServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(MemoryServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(MemoryServer).Watch(in, stream)
}

// MemoryClient calls softreason.v1.Memory with the JSON codec.
type MemoryClient struct {
	cc grpc.ClientConnInterface
}

// NewMemoryClient wraps a client connection.
func NewMemoryClient(cc grpc.ClientConnInterface) *MemoryClient {
	return &MemoryClient{cc: cc}
}

func (c *MemoryClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

// Ingest calls Memory/Ingest.
func (c *MemoryClient) Ingest(ctx context.Context, in *IngestRequest, opts ...grpc.CallOption) (*IngestResponse, error) {
	out := new(IngestResponse)
	if err := c.invoke(ctx, methodIngest, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// BatchIngest calls Memory/BatchIngest.
func (c *MemoryClient) BatchIngest(ctx context.Context, in *BatchIngestRequest, opts ...grpc.CallOption) (*BatchIngestResponse, error) {
	out := new(BatchIngestResponse)
	if err := c.invoke(ctx, methodBatchIngest, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// Query calls Memory/Query.
func (c *MemoryClient) Query(ctx context.Context, in *QueryRequest, opts ...grpc.CallOption) (*QueryResponse, error) {
	out := new(QueryResponse)
	if err := c.invoke(ctx, methodQuery, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete calls Memory/Delete.
func (c *MemoryClient) Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) error {
	return c.invoke(ctx, methodDelete, in, new(DeleteResponse), opts)
}

// Prune calls Memory/Prune.
func (c *MemoryClient) Prune(ctx context.Context, opts ...grpc.CallOption) (int, error) {
	out := new(PruneResponse)
	if err := c.invoke(ctx, methodPrune, &PruneRequest{}, out, opts); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

// Health calls Memory/Health.
func (c *MemoryClient) Health(ctx context.Context, opts ...grpc.CallOption) (*reasoning.Health, error) {
	out := new(reasoning.Health)
	if err := c.invoke(ctx, methodHealth, &HealthRequest{}, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// WatchStream receives events from Memory/Watch.
type WatchStream struct {
	grpc.ClientStream
}

// Recv blocks for the next event.
func (s *WatchStream) Recv() (*WatchEvent, error) {
	ev := new(WatchEvent)
	if err := s.ClientStream.RecvMsg(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Watch opens an event stream.
func (c *MemoryClient) Watch(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (*WatchStream, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &MemoryServiceDesc.Streams[0], methodWatch, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &WatchStream{ClientStream: stream}, nil
}
