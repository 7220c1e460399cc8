package interceptors

import (
	"context"
	"runtime/debug"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/softreason/softreason/pkg/logger"
)

var errPanic = status.Error(codes.Internal, "internal server error")

// RecoveryUnaryInterceptor converts a handler panic into codes.Internal.
// The panic value is logged, never returned to the caller.
func RecoveryUnaryInterceptor(log logger.Logger) grpc.UnaryServerInterceptor {
	log = logger.OrNop(log)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logPanic(ctx, log, info.FullMethod, r)
				resp, err = nil, errPanic
			}
		}()
		return handler(ctx, req)
	}
}

// RecoveryStreamInterceptor is the streaming form of RecoveryUnaryInterceptor.
func RecoveryStreamInterceptor(log logger.Logger) grpc.StreamServerInterceptor {
	log = logger.OrNop(log)
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logPanic(ss.Context(), log, info.FullMethod, r)
				err = errPanic
			}
		}()
		return handler(srv, ss)
	}
}

func logPanic(ctx context.Context, log logger.Logger, method string, r any) {
	log.ErrorContext(ctx, "panic recovered in grpc handler",
		"method", method,
		"panic", r,
		"stack", string(debug.Stack()),
	)
}
