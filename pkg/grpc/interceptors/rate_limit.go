package interceptors

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/softreason/softreason/pkg/ratelimit"
)

const healthServicePrefix = "/grpc.health.v1.Health/"

// RateLimitUnaryInterceptor answers ResourceExhausted with a retry-after
// header once a peer exhausts its bucket. Health checks are never limited.
func RateLimitUnaryInterceptor(l *ratelimit.Keyed) grpc.UnaryServerInterceptor {
	retryAfter := strconv.Itoa(int(l.RetryAfter() / time.Second))
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, healthServicePrefix) || l.Allow(peerKey(ctx)) {
			return handler(ctx, req)
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs("retry-after", retryAfter))
		return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
	}
}

// RateLimitStreamInterceptor charges one token per opened stream.
func RateLimitStreamInterceptor(l *ratelimit.Keyed) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if strings.HasPrefix(info.FullMethod, healthServicePrefix) || l.Allow(peerKey(ss.Context())) {
			return handler(srv, ss)
		}
		return status.Error(codes.ResourceExhausted, "rate limit exceeded")
	}
}

// peerKey is the caller's host, or "anonymous" without peer info.
func peerKey(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "anonymous"
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
