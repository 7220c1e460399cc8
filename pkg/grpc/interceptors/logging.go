package interceptors

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/softreason/softreason/pkg/logger"
)

// LoggingUnaryInterceptor logs the outcome of unary RPCs
func LoggingUnaryInterceptor(log logger.Logger) grpc.UnaryServerInterceptor {
	log = logger.OrNop(log)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		logCall(ctx, log, "grpc call", info.FullMethod, err, time.Since(start))
		return resp, err
	}
}

// LoggingStreamInterceptor logs stream lifecycle for streaming RPCs
func LoggingStreamInterceptor(log logger.Logger) grpc.StreamServerInterceptor {
	log = logger.OrNop(log)
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		ctx := ss.Context()

		log.DebugContext(ctx, "grpc stream opened",
			"method", info.FullMethod,
			"client_stream", info.IsClientStream,
			"server_stream", info.IsServerStream,
		)

		err := handler(srv, ss)

		logCall(ctx, log, "grpc stream closed", info.FullMethod, err, time.Since(start))
		return err
	}
}

func logCall(ctx context.Context, log logger.Logger, msg, method string, err error, d time.Duration) {
	code := codes.OK
	if err != nil {
		code = status.Code(err)
	}
	args := []any{
		"method", method,
		"code", code.String(),
		"duration_ms", d.Milliseconds(),
	}

	switch code {
	case codes.OK, codes.Canceled:
		log.DebugContext(ctx, msg, args...)
	case codes.Internal, codes.Unknown, codes.DataLoss, codes.Unavailable:
		log.ErrorContext(ctx, msg, append(args, "error", err)...)
	default:
		log.WarnContext(ctx, msg, append(args, "error", err)...)
	}
}
