package interceptors

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/softreason/softreason/pkg/logger"
)

// RequestIDKey is the metadata key shared with the HTTP X-Request-ID header.
const RequestIDKey = "x-request-id"

const maxRequestIDLen = 128

type requestIDKey struct{}

// WithRequestID stores id in ctx and tags context-aware log calls with it.
func WithRequestID(ctx context.Context, id string) context.Context {
	return logger.AppendCtx(context.WithValue(ctx, requestIDKey{}, id), "request_id", id)
}

// RequestIDFromContext returns the ID set by the request ID interceptor.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// RequestIDUnaryInterceptor adopts the caller's x-request-id or assigns one,
// echoes it in the response header and forwards it on outgoing calls.
func RequestIDUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id := incomingRequestID(ctx)
		ctx = WithRequestID(ctx, id)
		ctx = metadata.AppendToOutgoingContext(ctx, RequestIDKey, id)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDKey, id))
		return handler(ctx, req)
	}
}

// RequestIDStreamInterceptor is the streaming form of RequestIDUnaryInterceptor.
func RequestIDStreamInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		id := incomingRequestID(ss.Context())
		_ = ss.SetHeader(metadata.Pairs(RequestIDKey, id))
		return handler(srv, &contextStream{ServerStream: ss, ctx: WithRequestID(ss.Context(), id)})
	}
}

func incomingRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(RequestIDKey); len(ids) > 0 && validRequestID(ids[0]) {
			return ids[0]
		}
	}
	return uuid.NewString()
}

// validRequestID accepts non-empty printable ASCII up to maxRequestIDLen.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
